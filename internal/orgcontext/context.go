// Package orgcontext carries the organization and user a request acts for.
package orgcontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type principalKey struct{}

// Principal is resolved once per request by the API middleware and passed
// explicitly to services from there.
type Principal struct {
	OrgID  snowflake.ID
	UserID snowflake.ID
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.OrgID == 0 {
		return Principal{}, false
	}
	return p, true
}

// UserID returns the acting user even when no organization is selected yet.
func UserID(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.UserID == 0 {
		return 0, false
	}
	return p.UserID, true
}
