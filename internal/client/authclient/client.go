// Package authclient is a gRPC client for the gophauth service. It keeps the
// last issued token pair and rotates it transparently when a protected call
// is rejected.
package authclient

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/gophauth/internal/authapi"
)

// Device is sent as x-device-* metadata with every call.
type Device struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
}

type Client struct {
	conn   *grpc.ClientConn
	device Device

	mu   sync.Mutex
	pair authapi.TokenResponse
}

var protected = map[string]bool{
	authapi.FullMethod(authapi.MethodLogoutAll):      true,
	authapi.FullMethod(authapi.MethodListSessions):   true,
	authapi.FullMethod(authapi.MethodChangePassword): true,
}

// New dials target with insecure credentials unless opts override them.
func New(target string, device Device, opts ...grpc.DialOption) (*Client, error) {
	c := &Client{device: device}

	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(authapi.CodecName)),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}
	conn, err := grpc.NewClient(target, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Tokens returns the current pair.
func (c *Client) Tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pair.AccessToken, c.pair.RefreshToken
}

// Pair returns the current tokens with their expiries.
func (c *Client) Pair() authapi.TokenResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pair
}

// SetTokens installs a pair obtained elsewhere, e.g. from a token file.
// Expiries are unknown and reset.
func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pair = authapi.TokenResponse{AccessToken: access, RefreshToken: refresh}
}

func (c *Client) outgoing(ctx context.Context, withAccess bool) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	setIf(md, authapi.MDBrowser, c.device.Browser)
	setIf(md, authapi.MDBrowserVersion, c.device.BrowserVersion)
	setIf(md, authapi.MDOS, c.device.OS)
	setIf(md, authapi.MDOSVersion, c.device.OSVersion)

	if withAccess {
		access, _ := c.Tokens()
		md.Delete(authapi.MDAccessToken)
		setIf(md, authapi.MDAccessToken, access)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func setIf(md metadata.MD, key, value string) {
	if value != "" {
		md.Set(key, value)
	}
}

func (c *Client) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	isProtected := protected[method]
	err := invoker(c.outgoing(ctx, isProtected), method, req, reply, cc, opts...)
	if err == nil || !isProtected {
		return err
	}
	if st, ok := status.FromError(err); !ok || st.Code() != codes.Unauthenticated || st.Message() != authapi.MsgInvalidAccessToken {
		return err
	}

	if _, refresh := c.Tokens(); refresh == "" {
		return err
	}

	// access token rejected: renew it, rotating the session only when
	// renewal is refused, then retry once
	if _, rerr := c.RenewAccess(ctx); rerr != nil {
		if _, rerr := c.RenewRefresh(ctx); rerr != nil {
			return err
		}
	}
	return invoker(c.outgoing(ctx, true), method, req, reply, cc, opts...)
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	if err := c.conn.Invoke(ctx, authapi.FullMethod(method), req, resp); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *Client) storePair(resp *authapi.TokenResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pair.AccessToken = resp.AccessToken
	c.pair.AccessExpiresAt = resp.AccessExpiresAt
	if resp.RefreshToken != "" {
		c.pair.RefreshToken = resp.RefreshToken
		c.pair.RefreshExpiresAt = resp.RefreshExpiresAt
	}
}

func (c *Client) Signup(ctx context.Context, identifier, password, nickname string) (*authapi.TokenResponse, error) {
	resp := &authapi.TokenResponse{}
	req := &authapi.SignupRequest{Identifier: identifier, Password: password, Nickname: nickname}
	if err := c.invoke(ctx, authapi.MethodSignup, req, resp); err != nil {
		return nil, err
	}
	c.storePair(resp)
	return resp, nil
}

func (c *Client) Signin(ctx context.Context, identifier, password string) (*authapi.TokenResponse, error) {
	resp := &authapi.TokenResponse{}
	req := &authapi.SigninRequest{Identifier: identifier, Password: password}
	if err := c.invoke(ctx, authapi.MethodSignin, req, resp); err != nil {
		return nil, err
	}
	c.storePair(resp)
	return resp, nil
}

// RenewAccess replaces the access token, keeping the refresh token.
func (c *Client) RenewAccess(ctx context.Context) (*authapi.TokenResponse, error) {
	_, refresh := c.Tokens()
	resp := &authapi.TokenResponse{}
	if err := c.invoke(ctx, authapi.MethodRenewAccess, &authapi.RefreshRequest{RefreshToken: refresh}, resp); err != nil {
		return nil, err
	}
	c.storePair(resp)
	return resp, nil
}

// RenewRefresh rotates the refresh token. The response carries a new
// access token too.
func (c *Client) RenewRefresh(ctx context.Context) (*authapi.TokenResponse, error) {
	_, refresh := c.Tokens()
	resp := &authapi.TokenResponse{}
	if err := c.invoke(ctx, authapi.MethodRenewRefresh, &authapi.RefreshRequest{RefreshToken: refresh}, resp); err != nil {
		return nil, err
	}
	c.storePair(resp)
	return resp, nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, refresh := c.Tokens()
	if err := c.invoke(ctx, authapi.MethodLogout, &authapi.RefreshRequest{RefreshToken: refresh}, &authapi.Empty{}); err != nil {
		return err
	}
	c.SetTokens("", "")
	return nil
}

func (c *Client) LogoutAll(ctx context.Context) (int64, error) {
	resp := &authapi.LogoutAllResponse{}
	if err := c.invoke(ctx, authapi.MethodLogoutAll, &authapi.Empty{}, resp); err != nil {
		return 0, err
	}
	c.SetTokens("", "")
	return resp.Revoked, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]authapi.Session, error) {
	resp := &authapi.ListSessionsResponse{}
	if err := c.invoke(ctx, authapi.MethodListSessions, &authapi.Empty{}, resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	req := &authapi.ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	if err := c.invoke(ctx, authapi.MethodChangePassword, req, &authapi.Empty{}); err != nil {
		return err
	}
	c.SetTokens("", "")
	return nil
}

func mapError(err error) error {
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.AlreadyExists:
		return ErrAlreadyExists
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidInput, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
