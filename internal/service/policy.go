package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"autorenta-settlement/internal/domain"
	"autorenta-settlement/internal/fgo"
	"autorenta-settlement/internal/logger"
	"autorenta-settlement/internal/repository"
)

type policyService struct {
	fundRepo repository.FundRepository
	params   fgo.Params
}

func NewPolicyService(fundRepo repository.FundRepository, params fgo.Params) PolicyService {
	return &policyService{fundRepo: fundRepo, params: params}
}

// EvaluateForUser computes the fund's coverage decision for one user from
// live fund metrics. The decision is logged because it is never stored.
func (s *policyService) EvaluateForUser(ctx context.Context, userID string) (*fgo.PolicyDecision, error) {
	logger.EnterMethod("policyService.EvaluateForUser", "userID", userID)

	metrics, err := s.fundRepo.GetMetrics(ctx)
	if err != nil {
		logger.ExitMethodWithError("policyService.EvaluateForUser", err)
		return nil, err
	}

	quarterStart := startOfQuarter(time.Now().UTC())
	events, err := s.fundRepo.CountUserEvents(ctx, userID, quarterStart)
	if err != nil {
		logger.ExitMethodWithError("policyService.EvaluateForUser", err)
		return nil, err
	}

	decision := fgo.EvaluatePolicy(
		metrics.CoverageRatio(),
		metrics.LossRatio90d(),
		metrics.TotalBalanceUsd,
		events,
		metrics.PayoutsThisMonthUsd,
		s.params,
	)

	logger.Info("fund policy evaluated",
		"userID", userID,
		"solvency", decision.SolvencyStatus,
		"rc", decision.Rc,
		"canUseFgo", decision.CanUseFgo,
		"reasons", decision.Reasons)

	logger.ExitMethod("policyService.EvaluateForUser", "userID", userID)
	return &decision, nil
}

func (s *policyService) RecordContribution(ctx context.Context, userID, bookingID string, amountCents int64, kind fgo.ContributionKind) error {
	metrics, err := s.fundRepo.GetMetrics(ctx)
	if err != nil {
		return err
	}

	contribution := fgo.CalculateContribution(amountCents, kind, metrics.CoverageRatio(), s.params)
	if contribution <= 0 {
		return nil
	}

	return s.fundRepo.CreateEntry(ctx, &domain.FundEntry{
		ID:          uuid.New().String(),
		Type:        domain.FundEntryContribution,
		UserID:      userID,
		BookingID:   bookingID,
		AmountCents: contribution,
		Source:      string(kind),
		Metadata:    map[string]any{"base_amount_cents": amountCents},
	})
}

func (s *policyService) RecordPayout(ctx context.Context, userID, bookingID, beneficiaryID string, amountCents int64) error {
	return s.fundRepo.CreateEntry(ctx, &domain.FundEntry{
		ID:          uuid.New().String(),
		Type:        domain.FundEntryPayout,
		UserID:      userID,
		BookingID:   bookingID,
		AmountCents: amountCents,
		Metadata:    map[string]any{"beneficiary_id": beneficiaryID},
	})
}

func startOfQuarter(t time.Time) time.Time {
	month := ((int(t.Month())-1)/3)*3 + 1
	return time.Date(t.Year(), time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}
