package authclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/gophauth/internal/authapi"
)

type recordingInvoker struct {
	calls []metadata.MD
	err   error
}

func (r *recordingInvoker) invoke(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
	md, _ := metadata.FromOutgoingContext(ctx)
	r.calls = append(r.calls, md)
	return r.err
}

func newTestClient() *Client {
	c := &Client{device: Device{Browser: "Firefox", OS: "Linux"}}
	c.SetTokens("acc", "ref")
	return c
}

func TestInterceptor_Metadata(t *testing.T) {
	c := newTestClient()

	t.Run("public call carries device only", func(t *testing.T) {
		inv := &recordingInvoker{}
		err := c.accessTokenInterceptor(context.Background(), authapi.FullMethod(authapi.MethodSignin), nil, nil, nil, inv.invoke)
		require.NoError(t, err)
		require.Len(t, inv.calls, 1)

		md := inv.calls[0]
		assert.Equal(t, []string{"Firefox"}, md.Get(authapi.MDBrowser))
		assert.Equal(t, []string{"Linux"}, md.Get(authapi.MDOS))
		assert.Empty(t, md.Get(authapi.MDBrowserVersion))
		assert.Empty(t, md.Get(authapi.MDAccessToken))
	})

	t.Run("protected call carries access token", func(t *testing.T) {
		inv := &recordingInvoker{}
		ctx := metadata.AppendToOutgoingContext(context.Background(), authapi.MDAccessToken, "stale")
		err := c.accessTokenInterceptor(ctx, authapi.FullMethod(authapi.MethodListSessions), nil, nil, nil, inv.invoke)
		require.NoError(t, err)
		assert.Equal(t, []string{"acc"}, inv.calls[0].Get(authapi.MDAccessToken))
	})
}

func TestInterceptor_NoRetry(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		err     error
		refresh string
	}{
		{"public method", authapi.MethodSignin, status.Error(codes.Unauthenticated, authapi.MsgInvalidAccessToken), "ref"},
		{"wrong password", authapi.MethodChangePassword, status.Error(codes.Unauthenticated, "unauthorized"), "ref"},
		{"other code", authapi.MethodLogoutAll, status.Error(codes.Internal, "internal error"), "ref"},
		{"no refresh token", authapi.MethodListSessions, status.Error(codes.Unauthenticated, authapi.MsgInvalidAccessToken), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient()
			c.SetTokens("acc", tt.refresh)
			inv := &recordingInvoker{err: tt.err}

			err := c.accessTokenInterceptor(context.Background(), authapi.FullMethod(tt.method), nil, nil, nil, inv.invoke)
			assert.Equal(t, tt.err, err)
			assert.Len(t, inv.calls, 1)
		})
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		code codes.Code
		want error
	}{
		{codes.Unauthenticated, ErrUnauthorized},
		{codes.PermissionDenied, ErrUnauthorized},
		{codes.AlreadyExists, ErrAlreadyExists},
		{codes.InvalidArgument, ErrInvalidInput},
		{codes.Unavailable, ErrUnavailable},
		{codes.DeadlineExceeded, ErrUnavailable},
	}
	for _, tt := range tests {
		err := mapError(status.Error(tt.code, "x"))
		assert.ErrorIs(t, err, tt.want, tt.code.String())
	}

	err := mapError(status.Error(codes.Internal, "internal error"))
	assert.Contains(t, err.Error(), "internal error")
	for _, sentinel := range []error{ErrUnauthorized, ErrAlreadyExists, ErrInvalidInput, ErrUnavailable} {
		assert.False(t, errors.Is(err, sentinel))
	}
}

func TestTokens(t *testing.T) {
	c := newTestClient()
	c.storePair(&authapi.TokenResponse{AccessToken: "acc2"})
	access, refresh := c.Tokens()
	assert.Equal(t, "acc2", access)
	assert.Equal(t, "ref", refresh, "refresh kept when the response omits it")

	c.storePair(&authapi.TokenResponse{AccessToken: "acc3", RefreshToken: "ref3"})
	access, refresh = c.Tokens()
	assert.Equal(t, "acc3", access)
	assert.Equal(t, "ref3", refresh)
}
