package goRewards

import (
	"context"

	"github.com/MrEthical07/goRewards/client"
)

// WithLocale attaches the caller's locale to ctx. Requests made with ctx
// send it as Accept-Language instead of Config.API.Locale. Host formats
// such as "en_US" are accepted.
func WithLocale(ctx context.Context, locale string) context.Context {
	return client.WithLocale(ctx, locale)
}

type triggerReasonKey struct{}

func withTriggerReason(ctx context.Context, reason string) context.Context {
	return context.WithValue(ctx, triggerReasonKey{}, reason)
}

func triggerReasonFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	reason, _ := ctx.Value(triggerReasonKey{}).(string)
	return reason
}
