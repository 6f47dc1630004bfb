package provider

import (
	"time"

	"github.com/spec-kit/qr-attribution-service/internal/config"
	"github.com/spec-kit/qr-attribution-service/internal/domain"
)

// New resolves the configured provider strategy once at boot. Unknown
// or missing names fall back to local-only.
func New(cfg config.ProviderConfig) Client {
	switch domain.TicketProvider(cfg.Name) {
	case domain.ProviderZendesk:
		return NewZendesk(cfg)
	case domain.ProviderFreshdesk:
		return NewFreshdesk(cfg)
	default:
		return NewLocalOnly()
	}
}

// PolicyFromConfig maps retry settings into a RetryPolicy.
func PolicyFromConfig(cfg config.ProviderConfig) RetryPolicy {
	policy := DefaultRetryPolicy()
	if cfg.RetryMaxAttempts > 0 {
		policy.MaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryBaseSeconds > 0 {
		policy.BaseDelay = time.Duration(cfg.RetryBaseSeconds) * time.Second
	}
	if cfg.RetryCapSeconds > 0 {
		policy.CapDelay = time.Duration(cfg.RetryCapSeconds) * time.Second
	}
	return policy
}
