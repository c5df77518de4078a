package common

const (
	// AccessTokenHeaderName is the gRPC metadata key carrying the access token
	// on protected calls.
	AccessTokenHeaderName = "access_token"

	// SaltSize is the length in bytes of every per-user password salt.
	SaltSize = 32
)
