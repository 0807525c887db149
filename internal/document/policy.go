package document

import (
	"github.com/smallbiznis/quotebook/internal/config"
	"github.com/smallbiznis/quotebook/internal/document/domain"
)

// ConfiguredPolicy switches between the permissive and strict transition
// rules on every call so a billing.yml reload takes effect immediately.
type ConfiguredPolicy struct {
	Billing config.BillingProvider
}

func NewTransitionPolicy(billing config.BillingProvider) domain.TransitionPolicy {
	return ConfiguredPolicy{Billing: billing}
}

func (p ConfiguredPolicy) Allow(kind domain.Kind, from, to string) error {
	if p.Billing != nil && p.Billing.Get().StrictTransitions {
		return domain.Strict{}.Allow(kind, from, to)
	}
	return domain.Permissive{}.Allow(kind, from, to)
}
