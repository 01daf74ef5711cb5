package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// FromContext returns the request-scoped logger stored in ctx, or fallback
// when none was attached.
func FromContext(ctx context.Context, fallback *zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return fallback
}
