package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Equal(t, SessionsPostgres, c.SessionBackend)
	assert.Equal(t, SchemeJWT, c.TokenScheme)
	assert.Equal(t, 15*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, 14*24*time.Hour, c.RefreshTokenValidityDuration)
	assert.Equal(t, "lax", c.Cookie.SameSite)
	require.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"redis backend", func(c *Config) { c.SessionBackend = SessionsRedis }, false},
		{"unknown backend", func(c *Config) { c.SessionBackend = "etcd" }, true},
		{"paseto without key", func(c *Config) { c.TokenScheme = SchemePaseto }, true},
		{"paseto with key", func(c *Config) { c.TokenScheme = SchemePaseto; c.PasetoKeyHex = "00" }, false},
		{"jwt without secret", func(c *Config) { c.SecretKey = "" }, true},
		{"unknown scheme", func(c *Config) { c.TokenScheme = "saml" }, true},
		{"zero access ttl", func(c *Config) { c.AccessTokenValidityDuration = 0 }, true},
		{"bad samesite", func(c *Config) { c.Cookie.SameSite = "sometimes" }, true},
		{"samesite none insecure", func(c *Config) { c.Cookie.SameSite = "none" }, true},
		{"samesite none secure", func(c *Config) { c.Cookie = CookieConfig{SameSite: "None", Secure: true} }, false},
		{"no cors origins", func(c *Config) { c.AllowedOrigins = nil }, false},
		{"wildcard cors origin", func(c *Config) { c.AllowedOrigins = []string{"*"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tt.mutate(&c)

			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempFile(t, "cfg.yaml", "endpoint_addr_grpc: file:1\nendpoint_addr_http: file:2\ndatabase_dsn: file-dsn\n")
	t.Setenv(EnvPrefix+"HTTP_ADDRESS", "env:2")
	t.Setenv(EnvPrefix+"DATABASE_DSN", "env-dsn")
	os.Args = []string{"gophauth", "-c", path, "-d", "flag-dsn"}

	c, err := LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "file:1", c.EndpointAddrGRPC)
	assert.Equal(t, "env:2", c.EndpointAddrHTTP)
	assert.Equal(t, "flag-dsn", c.DatabaseDSN)
}

func TestLoadConfig_Invalid(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"gophauth", "-b", "etcd"}

	_, err := LoadConfig(context.Background())
	assert.Error(t, err)
}
