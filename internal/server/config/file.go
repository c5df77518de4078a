package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// FileConfig is the on-disk shape of the configuration. Durations use
// timex.Duration so files may write "15m" as well as nanoseconds. Only
// fields present in the file are applied.
type FileConfig struct {
	EndpointAddrGRPC             string          `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	EndpointAddrHTTP             string          `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	DatabaseDSN                  string          `json:"database_dsn" yaml:"database_dsn"`
	SessionBackend               string          `json:"session_backend" yaml:"session_backend"`
	RedisAddr                    string          `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword                string          `json:"redis_password" yaml:"redis_password"`
	RedisDB                      *int            `json:"redis_db" yaml:"redis_db"`
	SessionSweepInterval         *timex.Duration `json:"session_sweep_interval" yaml:"session_sweep_interval"`
	TokenScheme                  string          `json:"token_scheme" yaml:"token_scheme"`
	SecretKey                    string          `json:"secret_key" yaml:"secret_key"`
	PasetoKeyHex                 string          `json:"paseto_key" yaml:"paseto_key"`
	TokenIssuer                  string          `json:"token_issuer" yaml:"token_issuer"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration" yaml:"refresh_token_validity_duration"`
	Argon2MemoryKiB              uint32          `json:"argon2_memory_kib" yaml:"argon2_memory_kib"`
	Argon2Iterations             uint32          `json:"argon2_iterations" yaml:"argon2_iterations"`
	Argon2Parallelism            uint8           `json:"argon2_parallelism" yaml:"argon2_parallelism"`
	ReservedWords                []string        `json:"reserved_words" yaml:"reserved_words"`
	Cookie                       *CookieConfig   `json:"cookie" yaml:"cookie"`
	AllowedOrigins               []string        `json:"cors_allowed_origins" yaml:"cors_allowed_origins"`
	LogLevel                     string          `json:"log_level" yaml:"log_level"`
}

// parseFile loads the file named by -c/-config, if any. The format is
// chosen by extension: .yaml and .yml are YAML, anything else is JSON.
func parseFile(config *Config) error {
	path := flagx.ConfigFileFlag()

	// nothing to load
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}

func (fc *FileConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, fc.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, fc.DatabaseDSN)
	setString(&config.SessionBackend, fc.SessionBackend)
	setString(&config.RedisAddr, fc.RedisAddr)
	setString(&config.RedisPassword, fc.RedisPassword)
	setString(&config.TokenScheme, fc.TokenScheme)
	setString(&config.SecretKey, fc.SecretKey)
	setString(&config.PasetoKeyHex, fc.PasetoKeyHex)
	setString(&config.TokenIssuer, fc.TokenIssuer)
	setString(&config.LogLevel, fc.LogLevel)

	if fc.RedisDB != nil {
		config.RedisDB = *fc.RedisDB
	}
	if fc.SessionSweepInterval != nil {
		config.SessionSweepInterval = fc.SessionSweepInterval.Duration
	}
	if fc.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = fc.AccessTokenValidityDuration.Duration
	}
	if fc.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = fc.RefreshTokenValidityDuration.Duration
	}

	if fc.Argon2MemoryKiB != 0 {
		config.Argon2MemoryKiB = fc.Argon2MemoryKiB
	}
	if fc.Argon2Iterations != 0 {
		config.Argon2Iterations = fc.Argon2Iterations
	}
	if fc.Argon2Parallelism != 0 {
		config.Argon2Parallelism = fc.Argon2Parallelism
	}

	if fc.ReservedWords != nil {
		config.ReservedWords = fc.ReservedWords
	}
	if fc.AllowedOrigins != nil {
		config.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.Cookie != nil {
		config.Cookie = *fc.Cookie
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
