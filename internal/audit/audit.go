// Package audit records security-relevant events (logins, logouts, token
// issuance) on a dedicated logger channel so they can be shipped separately
// from operational logs.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/signet/internal/observability/logger"
)

// Event writes one audit record. The request-scoped logger carries the
// request ID, so audit lines correlate with the surrounding access logs.
func Event(ctx context.Context, event string, fields ...zap.Field) {
	logger.From(ctx).Named("audit").Info(event, fields...)
}
