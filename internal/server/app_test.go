package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
)

func memoryConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.SessionBackend = config.SessionsMemory
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.SessionSweepInterval = 10 * time.Millisecond
	c.LogLevel = "error"
	return c
}

func TestNewApp_Memory(t *testing.T) {
	app, err := NewApp(context.Background(), memoryConfig())
	require.NoError(t, err)
	require.NotNil(t, app.auth)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		app.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestNewApp_BadIssuer(t *testing.T) {
	c := memoryConfig()
	c.TokenScheme = config.SchemePaseto
	c.PasetoKeyHex = "not-hex"

	_, err := NewApp(context.Background(), c)
	assert.Error(t, err)
}

func TestHasherParams(t *testing.T) {
	c := &config.Config{}
	assert.Equal(t, password.DefaultParams(), hasherParams(c))

	c.Argon2MemoryKiB = 1024
	c.Argon2Iterations = 2
	c.Argon2Parallelism = 1
	p := hasherParams(c)
	assert.EqualValues(t, 1024, p.MemoryKiB)
	assert.EqualValues(t, 2, p.Iterations)
	assert.EqualValues(t, 1, p.Parallelism)
	assert.Equal(t, password.DefaultParams().KeyLength, p.KeyLength)
}
