// Package fgo implements the solvency-gated policy engine for the
// community guarantee fund. Everything here is pure computation: the
// caller supplies the fund metrics and gets back a decision plus the
// derived contribution rates. Nothing in this package touches storage.
package fgo

import "math"

type SolvencyStatus string

const (
	SolvencyHealthy   SolvencyStatus = "healthy"
	SolvencyWarning   SolvencyStatus = "warning"
	SolvencyCritical  SolvencyStatus = "critical"
	SolvencySuspended SolvencyStatus = "suspended"
)

type ContributionKind string

const (
	ContributionDeposit    ContributionKind = "deposit"
	ContributionMembership ContributionKind = "membership"
	ContributionCommission ContributionKind = "commission"
)

// Params are the operating thresholds of the fund. They are tunable per
// deployment but default to the launch values.
type Params struct {
	RcHardFloor        float64 // below this the fund is critical
	RcHealthy          float64 // at or above this the fund is healthy
	RcLowContribution  float64 // at or above this the lowest alpha applies
	EventCapUsd        float64 // per-event coverage cap at warning/healthy
	CriticalCapUsd     float64 // per-event coverage cap while critical
	CoPayPercentage    float64 // co-pay required in the warning band
	PerUserLimit       int     // covered events per user per quarter
	MonthlyPayoutCap   float64 // monthly payouts as a fraction of balance
	CommissionRate     float64 // fixed contribution rate on commissions
	AlphaLow           float64
	AlphaMid           float64
	AlphaHigh          float64
}

func DefaultParams() Params {
	return Params{
		RcHardFloor:       0.8,
		RcHealthy:         1.0,
		RcLowContribution: 1.2,
		EventCapUsd:       800,
		CriticalCapUsd:    100,
		CoPayPercentage:   20,
		PerUserLimit:      2,
		MonthlyPayoutCap:  0.08,
		CommissionRate:    0.04,
		AlphaLow:          0.10,
		AlphaMid:          0.15,
		AlphaHigh:         0.20,
	}
}

// PolicyDecision is the outcome of one eligibility evaluation. It is
// recomputed per request and logged, never persisted.
type PolicyDecision struct {
	CanUseFgo                 bool           `json:"can_use_fgo"`
	Reasons                   []string       `json:"reasons,omitempty"`
	MaxCoveragePerEventUsd    float64        `json:"max_coverage_per_event_usd"`
	RequiresCoPay             bool           `json:"requires_co_pay"`
	CoPayPercentage           float64        `json:"co_pay_percentage"`
	ContributionAlpha         float64        `json:"contribution_alpha"`
	SolvencyStatus            SolvencyStatus `json:"solvency_status"`
	Rc                        float64        `json:"rc"`
	Lr90d                     float64        `json:"lr_90d"`
	RemainingEventsThisQuarter int           `json:"remaining_events_this_quarter"`
}

// EvaluatePolicy computes the fund's answer for one potential coverage
// event. rc is the coverage ratio (balance over projected exposure),
// lr90d the 90-day loss ratio, userEventsThisQuarter how many covered
// events the user already consumed this quarter, and monthlyPayoutsUsd
// the fund's payouts so far this month.
func EvaluatePolicy(rc, lr90d, totalBalanceUsd float64, userEventsThisQuarter int, monthlyPayoutsUsd float64, p Params) PolicyDecision {
	d := PolicyDecision{
		Rc:                rc,
		Lr90d:             lr90d,
		ContributionAlpha: ContributionAlpha(rc, p),
	}

	switch {
	case totalBalanceUsd <= 0:
		d.SolvencyStatus = SolvencySuspended
		d.MaxCoveragePerEventUsd = 0
	case rc < p.RcHardFloor:
		d.SolvencyStatus = SolvencyCritical
		d.MaxCoveragePerEventUsd = p.CriticalCapUsd
	case rc < p.RcHealthy:
		d.SolvencyStatus = SolvencyWarning
		d.MaxCoveragePerEventUsd = p.EventCapUsd
		d.RequiresCoPay = true
		d.CoPayPercentage = p.CoPayPercentage
	default:
		d.SolvencyStatus = SolvencyHealthy
		d.MaxCoveragePerEventUsd = p.EventCapUsd
	}

	remaining := p.PerUserLimit - userEventsThisQuarter
	if remaining < 0 {
		remaining = 0
	}
	d.RemainingEventsThisQuarter = remaining

	d.CanUseFgo = true
	if d.SolvencyStatus == SolvencySuspended {
		d.CanUseFgo = false
		d.Reasons = append(d.Reasons, "fund balance exhausted")
	}
	if rc < p.RcHardFloor {
		d.CanUseFgo = false
		d.Reasons = append(d.Reasons, "coverage ratio below hard floor")
	}
	if userEventsThisQuarter >= p.PerUserLimit {
		// Hard cap; overriding it is a committee decision outside this engine.
		d.CanUseFgo = false
		d.Reasons = append(d.Reasons, "per-user quarterly event limit reached")
	}
	if totalBalanceUsd > 0 && monthlyPayoutsUsd >= p.MonthlyPayoutCap*totalBalanceUsd {
		d.CanUseFgo = false
		d.Reasons = append(d.Reasons, "monthly payout cap reached")
	}

	return d
}

// ContributionAlpha returns the contribution rate applied to deposits and
// membership fees at the given coverage ratio.
func ContributionAlpha(rc float64, p Params) float64 {
	switch {
	case rc >= p.RcLowContribution:
		return p.AlphaLow
	case rc >= p.RcHealthy:
		return p.AlphaMid
	default:
		return p.AlphaHigh
	}
}

// CalculateContribution returns the fund contribution, in cents, owed on
// an amount. Commission contributions use the fixed rate regardless of
// solvency; deposits and membership fees use the dynamic alpha.
func CalculateContribution(amountCents int64, kind ContributionKind, rc float64, p Params) int64 {
	rate := ContributionAlpha(rc, p)
	if kind == ContributionCommission {
		rate = p.CommissionRate
	}
	return int64(math.Round(float64(amountCents) * rate))
}

// PayoutValidation is the result of checking a requested payout against a
// decision. A request above the cap is clamped, not rejected.
type PayoutValidation struct {
	Allowed       bool
	AdjustedUsd   float64
	Clamped       bool
	RequiresCoPay bool
	Reason        string
}

// ValidatePayout checks one requested payout amount against the decision.
func ValidatePayout(requestedUsd float64, d PolicyDecision) PayoutValidation {
	if !d.CanUseFgo {
		reason := "fund not available"
		if len(d.Reasons) > 0 {
			reason = d.Reasons[0]
		}
		return PayoutValidation{Allowed: false, Reason: reason}
	}

	v := PayoutValidation{
		Allowed:       true,
		AdjustedUsd:   requestedUsd,
		RequiresCoPay: d.RequiresCoPay,
	}
	if requestedUsd > d.MaxCoveragePerEventUsd {
		v.AdjustedUsd = d.MaxCoveragePerEventUsd
		v.Clamped = true
	}
	return v
}
