package models

import "time"

// Device is the already-parsed user agent of the client owning a session.
// Every field is optional.
type Device struct {
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browser_version,omitempty"`
	OS             string `json:"os,omitempty"`
	OSVersion      string `json:"os_version,omitempty"`
}

// Session is the persisted record behind one refresh token. ExpiresAt is the
// exp claim of Token; the two never diverge.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Device    Device    `json:"device"`
	IP        string    `json:"ip"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// MaxIPLength is the width of the textual address column (full IPv6).
const MaxIPLength = 39
