package httpx

import "context"

type ctxKey string

const CtxKeyOperator ctxKey = "operator"

// OperatorFromContext returns the fingerprint of the admin token that
// authenticated the request, or "".
func OperatorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyOperator).(string); ok {
		return v
	}
	return ""
}
