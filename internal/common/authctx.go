package common

import "context"

type ctxKey string

const (
	userIDKey ctxKey = "auth/user-id"
	claimsKey ctxKey = "auth/claims"
)

// WithUserID stores the authenticated user identifier on the provided context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// WithClaims stores the decoded token claim set on the context. The claim set
// is what gates member discounts during pricing.
func WithClaims(ctx context.Context, claims map[string]any) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// Claims extracts the claim set from the context. A missing claim set means
// an anonymous caller and returns nil.
func Claims(ctx context.Context) map[string]any {
	v := ctx.Value(claimsKey)
	if v == nil {
		return nil
	}
	claims, _ := v.(map[string]any)
	return claims
}
