package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/gophauth/internal/client/authclient"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
)

const defaultServer = "127.0.0.1:50051"

func (a *App) RootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Command-line client for the gophauth service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&a.server, "server", "", "gRPC address of the gophauth server (default "+defaultServer+")")
	cmd.PersistentFlags().StringVar(&a.tokenPath, "token-file", DefaultTokenPath(), "where issued tokens are kept")

	cmd.AddCommand(
		a.newKeygenCommand(),
		a.newSignupCommand(),
		a.newSigninCommand(),
		a.newRenewCommand(),
		a.newSessionsCommand(),
		a.newLogoutCommand(),
	)
	return cmd
}

func (a *App) newKeygenCommand() *cobra.Command {
	var scheme string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a token signing key for the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch scheme {
			case auth.SchemeJWT:
				secret, err := common.MakeRandHexString(32)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "GOPHAUTH_SECRET_KEY=%s\n", secret)
			case auth.SchemePaseto:
				key := auth.GeneratePasetoKeyHex()
				public, err := auth.PasetoPublicKeyHex(key)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "GOPHAUTH_PASETO_KEY=%s\n", key)
				fmt.Fprintf(a.out, "# public key: %s\n", public)
			default:
				return fmt.Errorf("unknown scheme %q, want %s or %s", scheme, auth.SchemeJWT, auth.SchemePaseto)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scheme, "scheme", auth.SchemeJWT, "token scheme: jwt or paseto")
	return cmd
}

func (a *App) newSignupCommand() *cobra.Command {
	var identifier, nickname string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and save its tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if identifier == "" {
				if identifier, err = GetSimpleText(a.in, "Enter identifier", a.out); err != nil {
					return err
				}
			}
			if nickname == "" {
				if nickname, err = GetSimpleText(a.in, "Enter nickname", a.out); err != nil {
					return err
				}
			}
			pw, err := GetPassword(a.out, "Enter password")
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)

			c, err := a.dial(a.serverOrDefault())
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.Signup(cmd.Context(), identifier, string(pw), nickname)
			if err != nil {
				return describe(err)
			}

			tf := &TokenFile{Server: a.serverOrDefault()}
			tf.merge(resp)
			if err := saveTokens(a.tokenPath, tf); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Registered %s, access token valid until %s\n", identifier, resp.AccessExpiresAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&identifier, "identifier", "u", "", "login identifier")
	cmd.Flags().StringVarP(&nickname, "nickname", "n", "", "public nickname")
	return cmd
}

func (a *App) newSigninCommand() *cobra.Command {
	var identifier string

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and save the issued tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if identifier == "" {
				if identifier, err = GetSimpleText(a.in, "Enter identifier", a.out); err != nil {
					return err
				}
			}
			pw, err := GetPassword(a.out, "Enter password")
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)

			c, err := a.dial(a.serverOrDefault())
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.Signin(cmd.Context(), identifier, string(pw))
			if err != nil {
				return describe(err)
			}

			tf := &TokenFile{Server: a.serverOrDefault()}
			tf.merge(resp)
			if err := saveTokens(a.tokenPath, tf); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Success!")
			return nil
		},
	}

	cmd.Flags().StringVarP(&identifier, "identifier", "u", "", "login identifier")
	return cmd
}

func (a *App) newRenewCommand() *cobra.Command {
	var rotate bool

	cmd := &cobra.Command{
		Use:   "renew",
		Short: "Renew the access token, or rotate the refresh token with --refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, tf, err := a.session()
			if err != nil {
				return err
			}
			defer c.Close()

			if rotate {
				_, err = c.RenewRefresh(cmd.Context())
			} else {
				_, err = c.RenewAccess(cmd.Context())
			}
			if err != nil {
				return describe(err)
			}

			if err := a.persist(c, tf); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Access token valid until %s\n", tf.AccessExpiresAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&rotate, "refresh", false, "rotate the refresh token as well")
	return cmd
}

func (a *App) newSessionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List active sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, tf, err := a.session()
			if err != nil {
				return err
			}
			defer c.Close()

			list, err := c.ListSessions(cmd.Context())
			if err != nil {
				return describe(err)
			}
			if err := a.persist(c, tf); err != nil {
				return err
			}

			for _, s := range list {
				device := joinNonEmpty(s.Browser, s.BrowserVersion, s.OS, s.OSVersion)
				if device == "" {
					device = "-"
				}
				fmt.Fprintf(a.out, "%s\t%s\t%s\texpires %s\n", s.ID, s.IP, device, s.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func (a *App) newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the saved session and forget its tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := a.session()
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Logout(cmd.Context()); err != nil {
				return describe(err)
			}
			if err := removeTokens(a.tokenPath); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Bye!")
			return nil
		},
	}
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func (a *App) serverOrDefault() string {
	if a.server == "" {
		return defaultServer
	}
	return a.server
}

// describe turns client errors into messages for the terminal.
func describe(err error) error {
	switch {
	case errors.Is(err, authclient.ErrUnauthorized):
		return errors.New("not authorized, check the credentials or sign in again")
	case errors.Is(err, authclient.ErrAlreadyExists):
		return errors.New("identifier or nickname is already taken")
	case errors.Is(err, authclient.ErrUnavailable):
		return errors.New("server is unavailable")
	default:
		return err
	}
}
