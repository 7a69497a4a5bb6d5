package services

import "context"

// ctxKey keys the identifiers carried through a sync pass.
type ctxKey int

const (
	itemIDKey ctxKey = iota
	requestIDKey
)

// WithItemID tags ctx with the queue item being replayed. Empty ids are ignored.
func WithItemID(ctx context.Context, id string) context.Context {
	return withString(ctx, itemIDKey, id)
}

// ItemIDFromContext returns the queue item id set by WithItemID.
func ItemIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, itemIDKey)
}

// WithRequestID tags ctx with a sync pass or RPC correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey)
}

func withString(ctx context.Context, key ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func stringValue(ctx context.Context, key ctxKey) (string, bool) {
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}
