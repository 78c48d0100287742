package plan

import (
	"context"
	"log"
)

// Tier names.
const (
	TierBasic      = "basic"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// Unlimited marks numeric allowances with no cap.
const Unlimited = -1

// Limits is the fixed allowance table row for one subscription tier.
type Limits struct {
	MaxContacts        int
	MessageHistoryDays int
	RealTimeStatus     bool
	FileAttachments    bool
	ShareItems         bool
	PushNotifications  bool
	ContactMetrics     bool
}

var limitsByTier = map[string]Limits{
	TierBasic: {
		MaxContacts:        10,
		MessageHistoryDays: 30,
	},
	TierPro: {
		MaxContacts:        100,
		MessageHistoryDays: 365,
		RealTimeStatus:     true,
		ShareItems:         true,
		PushNotifications:  true,
		ContactMetrics:     true,
	},
	TierEnterprise: {
		MaxContacts:        Unlimited,
		MessageHistoryDays: Unlimited,
		RealTimeStatus:     true,
		FileAttachments:    true,
		ShareItems:         true,
		PushNotifications:  true,
		ContactMetrics:     true,
	},
}

// ForTier returns the allowance row for a tier, falling back to basic
// for unknown tier names.
func ForTier(tier string) Limits {
	if l, ok := limitsByTier[tier]; ok {
		return l
	}
	return limitsByTier[TierBasic]
}

// AllowsContacts reports whether count existing contacts leave room for
// one more under the limits.
func (l Limits) AllowsContacts(count int) bool {
	return l.MaxContacts == Unlimited || count < l.MaxContacts
}

// PlanReader supplies the current subscription tier for a user.
type PlanReader interface {
	GetPlan(ctx context.Context, userID int64) (string, error)
}

// Resolver maps users to their allowance row. Read failures fall back
// to the most restrictive tier instead of propagating: callers always
// get a usable value, at the cost of possibly denying an entitled
// feature during a store outage.
type Resolver struct {
	plans PlanReader
}

// NewResolver constructs a Resolver.
func NewResolver(plans PlanReader) *Resolver {
	return &Resolver{plans: plans}
}

// Limits returns the allowance row for userID.
func (r *Resolver) Limits(ctx context.Context, userID int64) Limits {
	tier, err := r.plans.GetPlan(ctx, userID)
	if err != nil {
		log.Printf("plan lookup failed for user %d, falling back to basic: %v", userID, err)
		return limitsByTier[TierBasic]
	}
	return ForTier(tier)
}
