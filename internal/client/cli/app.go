package cli

import (
	"bufio"
	"context"
	"io"
	"runtime"

	"github.com/dmitrijs2005/gophauth/internal/authapi"
	"github.com/dmitrijs2005/gophauth/internal/client/authclient"
)

// AuthClient is the part of authclient.Client the commands use.
type AuthClient interface {
	Signup(ctx context.Context, identifier, password, nickname string) (*authapi.TokenResponse, error)
	Signin(ctx context.Context, identifier, password string) (*authapi.TokenResponse, error)
	RenewAccess(ctx context.Context) (*authapi.TokenResponse, error)
	RenewRefresh(ctx context.Context) (*authapi.TokenResponse, error)
	Logout(ctx context.Context) error
	ListSessions(ctx context.Context) ([]authapi.Session, error)
	SetTokens(access, refresh string)
	Pair() authapi.TokenResponse
	Close() error
}

// Dialer opens a client for the server address.
type Dialer func(server string) (AuthClient, error)

type App struct {
	in   *bufio.Reader
	out  io.Writer
	dial Dialer

	server    string
	tokenPath string
}

func NewApp(in io.Reader, out io.Writer, dial Dialer) *App {
	if dial == nil {
		dial = dialGRPC
	}
	return &App{in: bufio.NewReader(in), out: out, dial: dial}
}

func dialGRPC(server string) (AuthClient, error) {
	c, err := authclient.New(server, authclient.Device{
		Browser:        "authctl",
		BrowserVersion: runtime.Version(),
		OS:             runtime.GOOS,
		OSVersion:      runtime.GOARCH,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// session dials the server and installs saved tokens.
func (a *App) session() (AuthClient, *TokenFile, error) {
	tf, err := loadTokens(a.tokenPath)
	if err != nil {
		return nil, nil, err
	}

	server := a.server
	if server == "" {
		server = tf.Server
	}
	if server == "" {
		server = defaultServer
	}
	c, err := a.dial(server)
	if err != nil {
		return nil, nil, err
	}
	c.SetTokens(tf.AccessToken, tf.RefreshToken)
	tf.Server = server
	return c, tf, nil
}

// persist writes the client's current pair, which changes when a protected
// call rotated it transparently.
func (a *App) persist(c AuthClient, tf *TokenFile) error {
	pair := c.Pair()
	if pair.AccessToken != tf.AccessToken {
		tf.AccessToken = pair.AccessToken
		tf.AccessExpiresAt = pair.AccessExpiresAt
	}
	if pair.RefreshToken != tf.RefreshToken {
		tf.RefreshToken = pair.RefreshToken
		tf.RefreshExpiresAt = pair.RefreshExpiresAt
	}
	return saveTokens(a.tokenPath, tf)
}
