// Package grpc exposes the auth flows over gRPC with a JSON codec.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

// Service is the part of services.AuthService used by the transport.
type Service interface {
	Signup(ctx context.Context, identifier, password, nickname string, client services.ClientInfo) (*services.TokenPair, error)
	Signin(ctx context.Context, identifier, password string, client services.ClientInfo) (*services.TokenPair, error)
	RenewAccess(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	RenewRefresh(ctx context.Context, refreshToken string, client services.ClientInfo) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (string, error)
	LogoutAll(ctx context.Context, userID string) (int64, error)
	ListSessions(ctx context.Context, userID string) ([]models.Session, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

type GRPCServer struct {
	address string
	auth    Service
	logger  logging.Logger
}

var _ AuthServer = (*GRPCServer)(nil)

func NewGRPCServer(address string, l logging.Logger, svc Service) *GRPCServer {
	return &GRPCServer{
		address: address,
		logger:  l.With("module", "grpc_server"),
		auth:    svc,
	}
}

// NewServer builds a *grpc.Server with the interceptors and the service
// registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	srv := grpc.NewServer(opts...)
	RegisterAuthServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
