package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

var flagNames = []string{"-a", "-l", "-d", "-b", "-R", "-m", "-s", "-k", "-t", "-r"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-l string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-b string   session backend: postgres, redis or memory
//	-R string   Redis address
//	-m string   token scheme: jwt or paseto
//	-s string   HS256 secret key
//	-k string   PASETO v4 secret key, hex
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//
// os.Args is filtered with flagx.FilterArgs first, so -c/-config and
// unknown flags do not trip the parser.
func parseFlags(config *Config) error {
	return parseArgs(config, os.Args[1:])
}

func parseArgs(config *Config, argv []string) error {
	args := flagx.FilterArgs(argv, flagNames)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "l", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SessionBackend, "b", config.SessionBackend, "session backend (postgres, redis, memory)")
	fs.StringVar(&config.RedisAddr, "R", config.RedisAddr, "redis address")
	fs.StringVar(&config.TokenScheme, "m", config.TokenScheme, "token scheme (jwt, paseto)")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.PasetoKeyHex, "k", config.PasetoKeyHex, "paseto secret key (hex)")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	// durations change only when the flag is given
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
		}
	})
	return nil
}
