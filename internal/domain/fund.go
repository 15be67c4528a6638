package domain

import "time"

// FundMetrics is a point-in-time snapshot of the guarantee fund used to
// evaluate coverage policy. Amounts are USD because the policy thresholds
// are defined in USD.
type FundMetrics struct {
	TotalBalanceUsd       float64 `json:"total_balance_usd"`
	ProjectedExposureUsd  float64 `json:"projected_exposure_usd"`
	PayoutsThisMonthUsd   float64 `json:"payouts_this_month_usd"`
	ContributionsLast90d  float64 `json:"contributions_last_90d_usd"`
	PayoutsLast90d        float64 `json:"payouts_last_90d_usd"`
}

// CoverageRatio is fund balance over projected exposure. With no open
// exposure the fund is maximally covered.
func (m *FundMetrics) CoverageRatio() float64 {
	if m.ProjectedExposureUsd <= 0 {
		if m.TotalBalanceUsd > 0 {
			return 10 // effectively unbounded
		}
		return 0
	}
	return m.TotalBalanceUsd / m.ProjectedExposureUsd
}

// LossRatio90d is payouts over contributions across the trailing 90 days.
func (m *FundMetrics) LossRatio90d() float64 {
	if m.ContributionsLast90d <= 0 {
		return 0
	}
	return m.PayoutsLast90d / m.ContributionsLast90d
}

type FundEntryType string

const (
	FundEntryContribution FundEntryType = "contribution"
	FundEntryPayout       FundEntryType = "payout"
)

// FundEntry is one movement in the guarantee fund ledger.
type FundEntry struct {
	ID          string         `json:"id"`
	Type        FundEntryType  `json:"type"`
	UserID      string         `json:"user_id"`
	BookingID   string         `json:"booking_id,omitempty"`
	AmountCents int64          `json:"amount_cents"`
	Source      string         `json:"source,omitempty"` // deposit, membership, commission
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// WalletDiscrepancy is a user whose recorded balance disagrees with the
// balance derived from confirmed ledger entries.
type WalletDiscrepancy struct {
	UserID        string `json:"user_id"`
	RecordedCents int64  `json:"recorded_cents"`
	DerivedCents  int64  `json:"derived_cents"`
}
