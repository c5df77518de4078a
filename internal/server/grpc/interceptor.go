package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/gophauth/internal/authapi"
	"github.com/dmitrijs2005/gophauth/internal/common"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// protectedMethods need a valid access token in the access_token metadata.
var protectedMethods = map[string]bool{
	authapi.FullMethod(authapi.MethodLogoutAll):      true,
	authapi.FullMethod(authapi.MethodListSessions):   true,
	authapi.FullMethod(authapi.MethodChangePassword): true,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if protectedMethods[info.FullMethod] {

		accessToken := firstMD(ctx, authapi.MDAccessToken)
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, authapi.MsgInvalidAccessToken)
		}

		userID, err := s.auth.Authenticate(ctx, accessToken)
		if err != nil {
			if errors.Is(err, common.ErrorUnauthorized) {
				return nil, status.Error(codes.Unauthenticated, authapi.MsgInvalidAccessToken)
			}
			return nil, toStatus(err)
		}

		ctx = context.WithValue(ctx, userIDKey, userID)
	}

	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug(ctx, "rpc",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}

func userIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func firstMD(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
