package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/gophauth/internal/authapi"
)

// AuthServer is the server side of authapi.ServiceName.
type AuthServer interface {
	Signup(context.Context, *authapi.SignupRequest) (*authapi.TokenResponse, error)
	Signin(context.Context, *authapi.SigninRequest) (*authapi.TokenResponse, error)
	RenewAccess(context.Context, *authapi.RefreshRequest) (*authapi.TokenResponse, error)
	RenewRefresh(context.Context, *authapi.RefreshRequest) (*authapi.TokenResponse, error)
	Logout(context.Context, *authapi.RefreshRequest) (*authapi.Empty, error)
	LogoutAll(context.Context, *authapi.Empty) (*authapi.LogoutAllResponse, error)
	ListSessions(context.Context, *authapi.Empty) (*authapi.ListSessionsResponse, error)
	ChangePassword(context.Context, *authapi.ChangePasswordRequest) (*authapi.Empty, error)
}

// unary builds a MethodDesc that decodes a *Req and dispatches to call,
// going through the server interceptor chain when there is one.
func unary[Req any](method string, call func(AuthServer, context.Context, *Req) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: authapi.FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: authapi.ServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(authapi.MethodSignup, func(s AuthServer, ctx context.Context, r *authapi.SignupRequest) (any, error) {
			return s.Signup(ctx, r)
		}),
		unary(authapi.MethodSignin, func(s AuthServer, ctx context.Context, r *authapi.SigninRequest) (any, error) {
			return s.Signin(ctx, r)
		}),
		unary(authapi.MethodRenewAccess, func(s AuthServer, ctx context.Context, r *authapi.RefreshRequest) (any, error) {
			return s.RenewAccess(ctx, r)
		}),
		unary(authapi.MethodRenewRefresh, func(s AuthServer, ctx context.Context, r *authapi.RefreshRequest) (any, error) {
			return s.RenewRefresh(ctx, r)
		}),
		unary(authapi.MethodLogout, func(s AuthServer, ctx context.Context, r *authapi.RefreshRequest) (any, error) {
			return s.Logout(ctx, r)
		}),
		unary(authapi.MethodLogoutAll, func(s AuthServer, ctx context.Context, r *authapi.Empty) (any, error) {
			return s.LogoutAll(ctx, r)
		}),
		unary(authapi.MethodListSessions, func(s AuthServer, ctx context.Context, r *authapi.Empty) (any, error) {
			return s.ListSessions(ctx, r)
		}),
		unary(authapi.MethodChangePassword, func(s AuthServer, ctx context.Context, r *authapi.ChangePasswordRequest) (any, error) {
			return s.ChangePassword(ctx, r)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophauth/auth.json",
}

// RegisterAuthServer registers srv on s.
func RegisterAuthServer(s grpc.ServiceRegistrar, srv AuthServer) {
	s.RegisterService(&authServiceDesc, srv)
}
