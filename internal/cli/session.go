package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/billsight/billsight-client/internal/core/domain"
)

const passwordEnv = "BILLSIGHT_PASSWORD"

func LoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}
	cmd.Flags().StringP("username", "u", "", "account username")
	cmd.Flags().StringP("password", "p", "", "account password (or "+passwordEnv+"; prompted when both are empty)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func runLogin(cmd *cobra.Command, _ []string) error {
	app := appFrom(cmd)
	ctx := cmd.Context()

	if user, err := app.restore(ctx); err == nil && user != nil {
		return fmt.Errorf("already logged in as %s; run 'billsight logout' first", user.Username)
	}

	username, _ := cmd.Flags().GetString("username")
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	user, err := app.Auth.Login(ctx, username, password)
	if err != nil {
		return loginError(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", user.Username, user.Role)
	return nil
}

func loginError(err error) error {
	var ae *domain.AuthError
	if errors.As(err, &ae) {
		return errors.New(ae.Message)
	}
	return err
}

func readPassword(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("password"); p != "" {
		return p, nil
	}
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	if line = strings.TrimRight(line, "\r\n"); line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}

func LogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd)
			if err := app.Session.Load(cmd.Context()); err != nil {
				return err
			}
			if app.Session.Token() == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			if err := app.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func WhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd)
			user, err := app.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s> role=%s\n", user.Username, user.Email, user.Role)
			if exp, ok := app.Session.ExpiresAt(); ok {
				fmt.Fprintf(out, "session expires %s\n", exp.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func HealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd)
			if err := app.Remote.Health(cmd.Context()); err != nil {
				return fmt.Errorf("%s: %w", app.Config.APIURL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is healthy\n", app.Config.APIURL)
			return nil
		},
	}
}
