// Package authapi is the wire contract of the gophauth gRPC service: method
// names, metadata keys and JSON message types shared by server and client.
package authapi

import (
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

const ServiceName = "gophauth.AuthService"

const (
	MethodSignup         = "Signup"
	MethodSignin         = "Signin"
	MethodRenewAccess    = "RenewAccess"
	MethodRenewRefresh   = "RenewRefresh"
	MethodLogout         = "Logout"
	MethodLogoutAll      = "LogoutAll"
	MethodListSessions   = "ListSessions"
	MethodChangePassword = "ChangePassword"
)

// FullMethod returns the gRPC path of method, e.g. "/gophauth.AuthService/Signin".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Metadata keys.
const (
	MDAccessToken    = common.AccessTokenHeaderName
	MDBrowser        = "x-device-browser"
	MDBrowserVersion = "x-device-browser-version"
	MDOS             = "x-device-os"
	MDOSVersion      = "x-device-os-version"
)

// MsgInvalidAccessToken is the status message of protected calls whose
// access token was missing or rejected. Clients may renew and retry on it.
const MsgInvalidAccessToken = "invalid access token"

type SignupRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Nickname   string `json:"nickname"`
}

type SigninRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type Empty struct{}

// TokenResponse carries issued tokens. Refresh fields are omitted when only
// an access token was renewed.
type TokenResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitzero"`
}

type LogoutAllResponse struct {
	Revoked int64 `json:"revoked"`
}

type Session struct {
	ID             string    `json:"id"`
	Browser        string    `json:"browser,omitempty"`
	BrowserVersion string    `json:"browser_version,omitempty"`
	OS             string    `json:"os,omitempty"`
	OSVersion      string    `json:"os_version,omitempty"`
	IP             string    `json:"ip"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
}
