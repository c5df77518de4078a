// Package cli implements authctl, a command-line client for the gophauth
// gRPC endpoint.
//
// Tokens issued by signup and signin are kept in a token file (0600) so
// later commands such as renew and sessions can reuse them. Passwords are
// read from the terminal without echo.
package cli
