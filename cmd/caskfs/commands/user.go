package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/caskfs/caskfs/internal/cli/output"
	"github.com/caskfs/caskfs/internal/cli/prompt"
	"github.com/caskfs/caskfs/pkg/config"
	"github.com/caskfs/caskfs/pkg/controlplane/models"
	"github.com/caskfs/caskfs/pkg/controlplane/store"
)

var (
	userAddRole  string
	userListJSON bool
	userForceYes bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
	Long: `Manage the user accounts that authenticate against the CaskFS API.

These commands operate directly on the control plane database configured
in the server configuration file; the server does not need to be running.

Examples:
  caskfs user add alice
  caskfs user add carol --role admin
  caskfs user passwd alice
  caskfs user disable bob
  caskfs user list`,
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a new user (prompts for password)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all users",
	Args:    cobra.NoArgs,
	RunE:    runUserList,
}

var userDeleteCmd = &cobra.Command{
	Use:     "delete <username>",
	Aliases: []string{"remove"},
	Short:   "Delete a user",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserDelete,
}

var userPasswdCmd = &cobra.Command{
	Use:     "passwd <username>",
	Aliases: []string{"password"},
	Short:   "Change a user's password",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserPasswd,
}

var userEnableCmd = &cobra.Command{
	Use:   "enable <username>",
	Short: "Enable a disabled user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setUserEnabled(args[0], true)
	},
}

var userDisableCmd = &cobra.Command{
	Use:   "disable <username>",
	Short: "Disable a user without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setUserEnabled(args[0], false)
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userAddRole, "role", string(models.RoleUser), "Role for the new user (user or admin)")
	userListCmd.Flags().BoolVar(&userListJSON, "json", false, "Output as JSON")
	userDeleteCmd.Flags().BoolVarP(&userForceYes, "yes", "y", false, "Skip confirmation prompt")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userDeleteCmd)
	userCmd.AddCommand(userPasswdCmd)
	userCmd.AddCommand(userEnableCmd)
	userCmd.AddCommand(userDisableCmd)
}

// openControlPlaneStore loads the configuration and opens the control
// plane database it points at. The caller owns the returned store.
func openControlPlaneStore() (*store.GORMStore, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}
	cpStore, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open control plane store: %w", err)
	}
	return cpStore, nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	username := args[0]

	role := models.UserRole(userAddRole)
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q: must be 'user' or 'admin'", userAddRole)
	}

	cpStore, err := openControlPlaneStore()
	if err != nil {
		return err
	}
	defer func() { _ = cpStore.Close() }()

	ctx := context.Background()

	if _, err := cpStore.GetUser(ctx, username); err == nil {
		return fmt.Errorf("user %q already exists", username)
	}

	password, err := prompt.PasswordWithConfirmation("Password", "Confirm password", models.MinPasswordLength)
	if err != nil {
		if prompt.IsAborted(err) {
			return errors.New("aborted")
		}
		return err
	}

	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		Enabled:      true,
		Role:         string(role),
		CreatedAt:    time.Now(),
	}
	if _, err := cpStore.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("User %q created with role %q\n", username, role)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	cpStore, err := openControlPlaneStore()
	if err != nil {
		return err
	}
	defer func() { _ = cpStore.Close() }()

	users, err := cpStore.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if userListJSON {
		return output.PrintJSON(os.Stdout, users)
	}

	table := output.NewTableData("Username", "Role", "Enabled", "Created", "Last Login")
	for _, user := range users {
		enabled := "yes"
		if !user.Enabled {
			enabled = "no"
		}
		lastLogin := "never"
		if user.LastLogin != nil {
			lastLogin = user.LastLogin.Format(time.RFC3339)
		}
		table.AddRow(user.Username, user.Role, enabled, user.CreatedAt.Format(time.RFC3339), lastLogin)
	}
	return output.PrintTable(os.Stdout, table)
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	username := args[0]

	cpStore, err := openControlPlaneStore()
	if err != nil {
		return err
	}
	defer func() { _ = cpStore.Close() }()

	ctx := context.Background()

	if _, err := cpStore.GetUser(ctx, username); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return fmt.Errorf("user %q does not exist", username)
		}
		return err
	}

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete user %q", username), userForceYes)
	if err != nil {
		if prompt.IsAborted(err) {
			return errors.New("aborted")
		}
		return err
	}
	if !ok {
		fmt.Println("Cancelled")
		return nil
	}

	if err := cpStore.DeleteUser(ctx, username); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	fmt.Printf("User %q deleted\n", username)
	return nil
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	username := args[0]

	cpStore, err := openControlPlaneStore()
	if err != nil {
		return err
	}
	defer func() { _ = cpStore.Close() }()

	ctx := context.Background()

	if _, err := cpStore.GetUser(ctx, username); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return fmt.Errorf("user %q does not exist", username)
		}
		return err
	}

	password, err := prompt.PasswordWithConfirmation("New password", "Confirm password", models.MinPasswordLength)
	if err != nil {
		if prompt.IsAborted(err) {
			return errors.New("aborted")
		}
		return err
	}

	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := cpStore.UpdatePassword(ctx, username, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	fmt.Printf("Password for %q updated\n", username)
	return nil
}

func setUserEnabled(username string, enabled bool) error {
	cpStore, err := openControlPlaneStore()
	if err != nil {
		return err
	}
	defer func() { _ = cpStore.Close() }()

	ctx := context.Background()

	user, err := cpStore.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return fmt.Errorf("user %q does not exist", username)
		}
		return err
	}

	if user.Enabled == enabled {
		fmt.Printf("User %q is already %s\n", username, enabledWord(enabled))
		return nil
	}

	user.Enabled = enabled
	if err := cpStore.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	fmt.Printf("User %q %s\n", username, enabledWord(enabled))
	return nil
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
