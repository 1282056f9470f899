package healing

import (
	"strings"

	"github.com/outboxguard/engine/pkg/errkind"
)

// classify derives the advisory ActionKind for a failure. The closed
// errkind.Kind narrows it directly; the message substring check only
// covers callers passing errkind.ProviderUnknown with no finer-grained
// kind available, a last resort rather than a primary mechanism.
func classify(kind errkind.Kind, message string) ActionKind {
	switch kind {
	case errkind.RateLimited, errkind.ProviderRateLimit:
		return ActionRetryAfterRateLimit
	case errkind.ProviderNetwork:
		return ActionRetryNetwork
	case errkind.ProviderResourceBusy:
		return ActionWaitForResource
	case errkind.ProviderTimeout:
		return ActionRetryWithBackoff
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "rate limit"):
		return ActionRetryAfterRateLimit
	case strings.Contains(lower, "network") || strings.Contains(lower, "connection"):
		return ActionRetryNetwork
	case strings.Contains(lower, "busy") || strings.Contains(lower, "resource"):
		return ActionWaitForResource
	case strings.Contains(lower, "timeout"):
		return ActionRetryWithBackoff
	default:
		return ActionRetryDefault
	}
}
