package api

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type ContextKey string

const (
	ContextIDKey ContextKey = "context_id"
	IPKey        ContextKey = "ip"
)

// GetContextLogger returns baseLogger with the request id and client ip
// carried by ctx.
func GetContextLogger(ctx context.Context, baseLogger *zap.Logger) *zap.Logger {
	logger := baseLogger
	if id, ok := ctx.Value(ContextIDKey).(string); ok && id != "" {
		logger = logger.With(zap.String("context_id", id))
	}
	if ip, ok := ctx.Value(IPKey).(string); ok && ip != "" {
		logger = logger.With(zap.String("ip", ip))
	}
	return logger
}

func WithContextID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextIDKey, id)
}

func WithIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, IPKey, ip)
}

// GenerateContextID generates a unique context ID with a prefix
func GenerateContextID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func GetContextID(ctx context.Context) string {
	id, _ := ctx.Value(ContextIDKey).(string)
	return id
}
