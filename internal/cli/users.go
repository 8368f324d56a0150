package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/billsight/billsight-client/internal/core/domain"
)

// UsersCmd returns the admin-only account management group.
func UsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts (admin only)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			_, err := appFrom(cmd).requireSession(cmd.Context())
			return err
		},
	}
	cmd.AddCommand(listUsersCmd(), createUserCmd(), deleteUserCmd(), toggleUserCmd())
	return cmd
}

func listUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := appFrom(cmd).Roster.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), users, time.Now())
			return nil
		},
	}
}

func createUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in domain.NewUser
			in.Username, _ = cmd.Flags().GetString("username")
			in.Email, _ = cmd.Flags().GetString("email")
			in.Password, _ = cmd.Flags().GetString("password")
			in.Role, _ = cmd.Flags().GetString("role")

			user, err := appFrom(cmd).Roster.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", user.Username, user.Role)
			return nil
		},
	}
	cmd.Flags().String("username", "", "username (3-50 characters)")
	cmd.Flags().String("email", "", "email address")
	cmd.Flags().String("password", "", "initial password (at least 6 characters)")
	cmd.Flags().String("role", domain.RoleUser, "role: user or admin")
	return cmd
}

func deleteUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete USERNAME",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := appFrom(cmd).Roster.Delete(cmd.Context(), args[0])
			if msg != "" {
				fmt.Fprintln(cmd.OutOrStdout(), msg)
			}
			return err
		},
	}
}

func toggleUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle USERNAME",
		Short: "Enable or disable an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roster := appFrom(cmd).Roster
			msg, err := roster.ToggleActive(cmd.Context(), args[0])
			if msg != "" {
				fmt.Fprintln(cmd.OutOrStdout(), msg)
			}
			return err
		},
	}
}

func printUsers(out io.Writer, users []domain.User, now time.Time) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tEMAIL\tROLE\tACTIVE\tONLINE\tLAST SEEN")
	for _, u := range users {
		seen := "-"
		if u.LastActivity != nil {
			seen = humanize.RelTime(*u.LastActivity, now, "ago", "from now")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", u.Username, u.Email, u.Role, yesNo(u.IsActive), yesNo(u.IsLoggedIn), seen)
	}
	_ = tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
