package ctxutil

import "context"

type traceDataKey struct{}

// TraceData correlates logs and job events with the request or job that produced them.
type TraceData struct {
	TraceID   string
	RequestID string
	ProgramID string
	JobID     string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// Detached returns a background context carrying ctx's trace data, for work that
// must outlive the request that started it.
func Detached(ctx context.Context) context.Context {
	out := context.Background()
	if td := GetTraceData(ctx); td != nil {
		cp := *td
		out = WithTraceData(out, &cp)
	}
	return out
}
