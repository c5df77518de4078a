package grpc

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/gophauth/internal/authapi"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

func (s *GRPCServer) Signup(ctx context.Context, req *authapi.SignupRequest) (*authapi.TokenResponse, error) {

	pair, err := s.auth.Signup(ctx, req.Identifier, req.Password, req.Nickname, clientInfo(ctx))
	if err != nil {
		return nil, toStatus(err)
	}

	s.logger.Info(ctx, "Registered", "identifier", req.Identifier)
	return tokenResponse(pair), nil
}

func (s *GRPCServer) Signin(ctx context.Context, req *authapi.SigninRequest) (*authapi.TokenResponse, error) {

	pair, err := s.auth.Signin(ctx, req.Identifier, req.Password, clientInfo(ctx))
	if err != nil {
		return nil, toStatus(err)
	}

	return tokenResponse(pair), nil
}

func (s *GRPCServer) RenewAccess(ctx context.Context, req *authapi.RefreshRequest) (*authapi.TokenResponse, error) {

	pair, err := s.auth.RenewAccess(ctx, req.RefreshToken)
	if err != nil {
		return nil, toStatus(err)
	}

	return tokenResponse(pair), nil
}

func (s *GRPCServer) RenewRefresh(ctx context.Context, req *authapi.RefreshRequest) (*authapi.TokenResponse, error) {

	pair, err := s.auth.RenewRefresh(ctx, req.RefreshToken, clientInfo(ctx))
	if err != nil {
		return nil, toStatus(err)
	}

	return tokenResponse(pair), nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *authapi.RefreshRequest) (*authapi.Empty, error) {

	if err := s.auth.Logout(ctx, req.RefreshToken); err != nil {
		return nil, toStatus(err)
	}

	return &authapi.Empty{}, nil
}

func (s *GRPCServer) LogoutAll(ctx context.Context, _ *authapi.Empty) (*authapi.LogoutAllResponse, error) {

	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	n, err := s.auth.LogoutAll(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}

	return &authapi.LogoutAllResponse{Revoked: n}, nil
}

func (s *GRPCServer) ListSessions(ctx context.Context, _ *authapi.Empty) (*authapi.ListSessionsResponse, error) {

	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	list, err := s.auth.ListSessions(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &authapi.ListSessionsResponse{Sessions: make([]authapi.Session, 0, len(list))}
	for _, ss := range list {
		resp.Sessions = append(resp.Sessions, sessionInfo(ss))
	}
	return resp, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *authapi.ChangePasswordRequest) (*authapi.Empty, error) {

	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	if err := s.auth.ChangePassword(ctx, userID, req.OldPassword, req.NewPassword); err != nil {
		return nil, toStatus(err)
	}

	return &authapi.Empty{}, nil
}

// toStatus maps service errors onto gRPC codes. Internal details never
// reach the client.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrorConflict):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// clientInfo reads the device from x-device-* metadata and the address
// from the transport peer.
func clientInfo(ctx context.Context) services.ClientInfo {
	info := services.ClientInfo{
		Device: models.Device{
			Browser:        firstMD(ctx, authapi.MDBrowser),
			BrowserVersion: firstMD(ctx, authapi.MDBrowserVersion),
			OS:             firstMD(ctx, authapi.MDOS),
			OSVersion:      firstMD(ctx, authapi.MDOSVersion),
		},
	}

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr := p.Addr.String()
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		info.IP = addr
	}
	return info
}

func tokenResponse(p *services.TokenPair) *authapi.TokenResponse {
	return &authapi.TokenResponse{
		AccessToken:      p.AccessToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshToken:     p.RefreshToken,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

func sessionInfo(s models.Session) authapi.Session {
	return authapi.Session{
		ID:             s.ID,
		Browser:        s.Device.Browser,
		BrowserVersion: s.Device.BrowserVersion,
		OS:             s.Device.OS,
		OSVersion:      s.Device.OSVersion,
		IP:             s.IP,
		CreatedAt:      s.CreatedAt,
		ExpiresAt:      s.ExpiresAt,
	}
}
