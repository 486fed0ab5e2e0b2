package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/consultease/adminguard/internal/config"
	"github.com/consultease/adminguard/internal/credential"
	"github.com/consultease/adminguard/internal/lockout"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
		Long: `Create, list, rename and (de)activate administrator accounts, reset
passwords, inspect lockout state and import accounts from the legacy system.`,
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminPasswdCmd())
	cmd.AddCommand(newAdminActivateCmd(true))
	cmd.AddCommand(newAdminActivateCmd(false))
	cmd.AddCommand(newAdminRenameCmd())
	cmd.AddCommand(newAdminStatusCmd())
	cmd.AddCommand(newAdminImportCmd())

	return cmd
}

// describeWeak adds the policy hint to a weak password error.
func describeWeak(err error) error {
	var weak *credential.WeakPasswordError
	if errors.As(err, &weak) {
		return fmt.Errorf("password rejected: %s", weak.Reason)
	}
	return err
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a new administrator",
		Example: `  adminguard admin create alice                # prompts for password
  adminguard admin create alice --password 'S3cure-Pass!'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCreate(cmd, args[0], password)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")

	return cmd
}

func runAdminCreate(cmd *cobra.Command, username, password string) error {
	if password == "" {
		var err error
		if password, err = readNewPassword(cmd); err != nil {
			return err
		}
	}

	authSvc, store, _, err := openAuthService()
	if err != nil {
		return err
	}
	defer store.Close()

	admin, err := authSvc.CreateAdmin(cmd.Context(), username, password)
	if err != nil {
		if errors.Is(err, config.ErrDuplicate) {
			return fmt.Errorf("admin %q already exists", username)
		}
		return describeWeak(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created admin %q (id %d)\n", admin.Username, admin.ID)
	return nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all administrators",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminList(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdminList(cmd *cobra.Command, jsonOutput bool) error {
	authSvc, store, _, err := openAuthService()
	if err != nil {
		return err
	}
	defer store.Close()

	admins, err := authSvc.ListAdmins(cmd.Context(), time.Now())
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(admins)
	}

	if len(admins) == 0 {
		fmt.Fprintln(out, "No administrators configured. Use 'adminguard admin create' to create one.")
		return nil
	}

	fmt.Fprintf(out, "%-6s %-24s %-8s %-8s %s\n", "ID", "USERNAME", "ACTIVE", "LOCKED", "CREATED")
	fmt.Fprintf(out, "%-6s %-24s %-8s %-8s %s\n", "--", "--------", "------", "------", "-------")
	for _, a := range admins {
		fmt.Fprintf(out, "%-6d %-24s %-8s %-8s %s\n",
			a.ID, a.Username, yesNo(a.IsActive), yesNo(a.Locked), a.CreatedAt.Format(time.RFC3339))
	}

	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// ---------- admin passwd ----------

func newAdminPasswdCmd() *cobra.Command {
	var (
		password        string
		verifyCurrent   bool
		currentPassword string
	)

	cmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Set an administrator's password",
		Long: `Set a new password for an administrator. By default this is an operator
reset that does not require the current password. With --verify-current the
current password is checked as a login attempt and counts toward lockout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminPasswd(cmd, args[0], password, verifyCurrent, currentPassword)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "New password (prompted if omitted)")
	cmd.Flags().BoolVar(&verifyCurrent, "verify-current", false, "Require the current password")
	cmd.Flags().StringVar(&currentPassword, "current-password", "", "Current password (prompted if omitted with --verify-current)")

	return cmd
}

func runAdminPasswd(cmd *cobra.Command, username, password string, verifyCurrent bool, current string) error {
	var err error
	if verifyCurrent && current == "" {
		if current, err = readPassword(cmd, "Current password: "); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = readNewPassword(cmd); err != nil {
			return err
		}
	}

	authSvc, store, _, err := openAuthService()
	if err != nil {
		return err
	}
	defer store.Close()

	if verifyCurrent {
		err = authSvc.ChangePassword(cmd.Context(), username, current, password, time.Now())
	} else {
		err = authSvc.SetPassword(cmd.Context(), username, password)
	}
	if err != nil {
		return describeWeak(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %q\n", username)
	return nil
}

// ---------- admin activate / deactivate ----------

func newAdminActivateCmd(activate bool) *cobra.Command {
	use, short := "activate", "Allow an administrator to log in"
	if !activate {
		use, short = "deactivate", "Prevent an administrator from logging in"
	}

	return &cobra.Command{
		Use:   use + " <username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			authSvc, store, _, err := openAuthService()
			if err != nil {
				return err
			}
			defer store.Close()

			if activate {
				err = authSvc.Activate(cmd.Context(), args[0])
			} else {
				err = authSvc.Deactivate(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Admin %q %sd\n", args[0], use)
			return nil
		},
	}
}

// ---------- admin rename ----------

func newAdminRenameCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "rename <username> <new-username>",
		Short: "Change an administrator's username",
		Long: `Change an administrator's username. The account's password is required and
is checked as a login attempt.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = readPassword(cmd, "Password: "); err != nil {
					return err
				}
			}

			authSvc, store, _, err := openAuthService()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := authSvc.ChangeUsername(cmd.Context(), args[0], password, args[1], time.Now()); err != nil {
				if errors.Is(err, config.ErrDuplicate) {
					return fmt.Errorf("admin %q already exists", args[1])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %q to %q\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Current password (prompted if omitted)")

	return cmd
}

// ---------- admin status ----------

func newAdminStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <username>",
		Short: "Show an administrator's lockout state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminStatus(cmd, args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdminStatus(cmd *cobra.Command, username string, jsonOutput bool) error {
	authSvc, store, _, err := openAuthService()
	if err != nil {
		return err
	}
	defer store.Close()

	admin, err := authSvc.GetAdmin(cmd.Context(), username)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return fmt.Errorf("admin %q not found", username)
		}
		return err
	}

	locked, remaining := lockout.Status(admin.AccountLockedUntil, time.Now())
	status := struct {
		Username            string     `json:"username"`
		Active              bool       `json:"is_active"`
		Locked              bool       `json:"locked"`
		RemainingSeconds    int64      `json:"remaining_seconds"`
		FailedLoginAttempts int        `json:"failed_login_attempts"`
		LastFailedLoginAt   *time.Time `json:"last_failed_login_at,omitempty"`
		LegacyHash          bool       `json:"legacy_hash"`
	}{
		Username:            admin.Username,
		Active:              admin.IsActive,
		Locked:              locked,
		RemainingSeconds:    lockout.Seconds(remaining),
		FailedLoginAttempts: admin.FailedLoginAttempts,
		LastFailedLoginAt:   admin.LastFailedLoginAt,
		LegacyHash:          admin.LegacySalt != "",
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	fmt.Fprintf(out, "Admin:           %s\n", status.Username)
	fmt.Fprintf(out, "  Active:        %s\n", yesNo(status.Active))
	if locked {
		fmt.Fprintf(out, "  Locked:        yes (%d seconds remaining)\n", status.RemainingSeconds)
	} else {
		fmt.Fprintf(out, "  Locked:        no\n")
	}
	fmt.Fprintf(out, "  Failures:      %d\n", status.FailedLoginAttempts)
	if status.LastFailedLoginAt != nil {
		fmt.Fprintf(out, "  Last failure:  %s\n", status.LastFailedLoginAt.Format(time.RFC3339))
	}
	if status.LegacyHash {
		fmt.Fprintf(out, "  Hash:          legacy SHA-256 (reset the password to upgrade)\n")
	}
	return nil
}

// ---------- admin import ----------

func newAdminImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import accounts exported from the legacy system",
		Long: `Import administrator accounts with their legacy SHA-256 digests and salts.
Imported accounts keep authenticating with their existing passwords. Usernames
that already exist are skipped.`,
		Example: `  adminguard admin import legacy-admins.yaml

  # legacy-admins.yaml
  admins:
    - username: ops
      password_hash: 5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8
      salt: a1b2c3
      is_active: true`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imp, err := config.LoadLegacyImport(args[0])
			if err != nil {
				return err
			}

			authSvc, store, _, err := openAuthService()
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := authSvc.ImportLegacy(cmd.Context(), imp)
			if res != nil {
				out := cmd.OutOrStdout()
				for _, u := range res.Imported {
					fmt.Fprintf(out, "imported  %s\n", u)
				}
				for _, u := range res.Skipped {
					fmt.Fprintf(out, "skipped   %s (already exists)\n", u)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d imported, %d skipped\n", len(res.Imported), len(res.Skipped))
			return nil
		},
	}
}
