// Package tracing carries request identity through context. Plain
// request/trace/span IDs live here; the OpenTelemetry bridge that
// exports real spans is in opentelemetry.go.
package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	traceIDKey
	spanIDKey
	startTimeKey
)

// RequestInfo bundles the identity of one in-flight request for logs
// and response payloads.
type RequestInfo struct {
	RequestID string    `json:"request_id"`
	TraceID   string    `json:"trace_id"`
	SpanID    string    `json:"span_id"`
	StartTime time.Time `json:"start_time"`
}

// randomHex returns n random bytes hex-encoded, or "" when the source
// fails so callers can fall back to a timestamp.
func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// GenerateRequestID returns a new request ID with a req_ prefix.
func GenerateRequestID() string {
	if s := randomHex(8); s != "" {
		return "req_" + s
	}
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}

// GenerateTraceID returns a 32 character hex trace ID.
func GenerateTraceID() string {
	if s := randomHex(16); s != "" {
		return s
	}
	return fmt.Sprintf("trace_%d", time.Now().UnixNano())
}

// GenerateSpanID returns a 16 character hex span ID.
func GenerateSpanID() string {
	if s := randomHex(8); s != "" {
		return s
	}
	return fmt.Sprintf("span_%d", time.Now().UnixNano())
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func WithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, spanIDKey, spanID)
}

func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey, startTime)
}

func GetRequestID(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}

func GetTraceID(ctx context.Context) string {
	s, _ := ctx.Value(traceIDKey).(string)
	return s
}

func GetSpanID(ctx context.Context) string {
	s, _ := ctx.Value(spanIDKey).(string)
	return s
}

func GetStartTime(ctx context.Context) time.Time {
	t, _ := ctx.Value(startTimeKey).(time.Time)
	return t
}

// GetRequestInfo collects whatever identity the context carries.
// Missing values come back as zero values.
func GetRequestInfo(ctx context.Context) *RequestInfo {
	return &RequestInfo{
		RequestID: GetRequestID(ctx),
		TraceID:   GetTraceID(ctx),
		SpanID:    GetSpanID(ctx),
		StartTime: GetStartTime(ctx),
	}
}

// WithFullTracing stamps the context with fresh IDs and the current
// time. Used at the edge when a request arrives without identity.
func WithFullTracing(ctx context.Context) context.Context {
	ctx = WithRequestID(ctx, GenerateRequestID())
	ctx = WithTraceID(ctx, GenerateTraceID())
	ctx = WithSpanID(ctx, GenerateSpanID())
	return WithStartTime(ctx, time.Now())
}

// Duration reports elapsed time since the context start time, or zero
// when no start time was recorded.
func Duration(ctx context.Context) time.Duration {
	startTime := GetStartTime(ctx)
	if startTime.IsZero() {
		return 0
	}
	return time.Since(startTime)
}
