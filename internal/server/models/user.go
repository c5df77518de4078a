// Package models holds the plain data structures persisted by the
// repositories. They carry no persistence behaviour of their own.
package models

import "time"

// User is an identity record. PasswordHash and Salt are raw bytes of fixed
// width; Salt is regenerated whenever the password changes.
type User struct {
	ID           string
	UserName     string
	Nickname     string
	PasswordHash []byte
	Salt         []byte
	CreatedAt    time.Time
}
