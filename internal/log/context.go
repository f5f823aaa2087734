package log

import "context"

type contextKey string

const contextLogValuesKey = contextKey("log-values")

// CtxWithValues returns a copy of parent with the received log values merged on
// top of the ones already stored on the context.
func CtxWithValues(parent context.Context, kv Kv) context.Context {
	oldValues := ValuesFromCtx(parent)
	newValues := make(Kv, len(oldValues)+len(kv))
	for k, v := range oldValues {
		newValues[k] = v
	}
	for k, v := range kv {
		newValues[k] = v
	}

	return context.WithValue(parent, contextLogValuesKey, newValues)
}

// ValuesFromCtx returns the log values stored on a context.
func ValuesFromCtx(ctx context.Context) Kv {
	values, ok := ctx.Value(contextLogValuesKey).(Kv)
	if !ok {
		return Kv{}
	}

	return values
}
