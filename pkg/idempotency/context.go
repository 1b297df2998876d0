package idempotency

import "context"

type keyContextKey struct{}

// WithKey records the key a request is deduplicated under.
func WithKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}

	return context.WithValue(ctx, keyContextKey{}, key)
}

func FromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(keyContextKey{}).(string)

	return key, ok
}
