package service

import (
	"context"

	"autorenta-settlement/internal/logger"
	"autorenta-settlement/internal/repository"
)

const (
	cleanReturnReputationDelta  = 1
	damageChargeReputationDelta = -2
)

type reputationService struct {
	userRepo repository.UserDirectory
}

func NewReputationService(userRepo repository.UserDirectory) ReputationService {
	return &reputationService{userRepo: userRepo}
}

func (s *reputationService) RecordCleanReturn(ctx context.Context, renterID string) error {
	if err := s.userRepo.AdjustReputation(ctx, renterID, cleanReturnReputationDelta); err != nil {
		return err
	}
	logger.Debug("reputation credited for clean return", "renterID", renterID)
	return nil
}

func (s *reputationService) RecordDamageCharge(ctx context.Context, renterID string, chargedCents int64) error {
	if err := s.userRepo.AdjustReputation(ctx, renterID, damageChargeReputationDelta); err != nil {
		return err
	}
	logger.Debug("reputation debited for damage charge", "renterID", renterID, "chargedCents", chargedCents)
	return nil
}
