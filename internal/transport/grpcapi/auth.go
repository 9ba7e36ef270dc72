package grpcapi

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oggyb/muzz-matchmaking/internal/logger"
)

// UserIDHeader carries the caller identity set by the auth gateway in front
// of this service. It is trusted as-is.
const UserIDHeader = "x-user-id"

type userKey struct{}

// UserID returns the authenticated caller stored by the identity interceptor.
func UserID(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(userKey{}).(uint64)
	return id, ok
}

// WithUser attaches the caller identity to an outgoing client context.
func WithUser(ctx context.Context, userID uint64) context.Context {
	return metadata.AppendToOutgoingContext(ctx, UserIDHeader, strconv.FormatUint(userID, 10))
}

// IdentityInterceptor rejects Matchmaking calls without a valid caller id and
// stores the id and a request-scoped logger in the context. Other services
// on the same server (health) pass through untouched.
func IdentityInterceptor(base *slog.Logger) grpc.UnaryServerInterceptor {
	prefix := "/" + ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		vals := md.Get(UserIDHeader)
		if len(vals) == 0 || strings.TrimSpace(vals[0]) == "" {
			return nil, status.Error(codes.Unauthenticated, "missing "+UserIDHeader)
		}
		id, err := strconv.ParseUint(strings.TrimSpace(vals[0]), 10, 64)
		if err != nil || id == 0 {
			return nil, status.Error(codes.Unauthenticated, "invalid "+UserIDHeader)
		}

		ctx = context.WithValue(ctx, userKey{}, id)
		ctx = logger.WithContext(ctx, base.With("user", id, "method", info.FullMethod))
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs every call with its outcome and duration.
func LoggingInterceptor(base *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		started := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		attrs := []any{"method", info.FullMethod, "code", code.String(), "took", time.Since(started)}
		switch code {
		case codes.OK:
			base.Debug("rpc", attrs...)
		case codes.Internal, codes.Unavailable, codes.Unknown:
			base.Error("rpc", append(attrs, "err", err)...)
		default:
			base.Info("rpc", append(attrs, "err", err)...)
		}
		return resp, err
	}
}
