package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/timeclock/internal/application"
	"github.com/example/timeclock/internal/persistence/sqlite"
)

var (
	adminEmail       string
	adminDisplayName string
	adminPassword    string
	adminTimezone    string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Provision an administrator account",
	Long: `create-admin inserts an administrator directly into the database so
the first account can be created before the API has any users.`,
	RunE: runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "email address of the new administrator")
	createAdminCmd.Flags().StringVar(&adminDisplayName, "name", "", "display name of the new administrator")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "initial password, at least 8 characters")
	createAdminCmd.Flags().StringVar(&adminTimezone, "timezone", "", "IANA timezone of the new administrator")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("name")
	_ = createAdminCmd.MarkFlagRequired("password")
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	_, pool, err := openStorage(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	users := newUserDirectoryAdapter(sqlite.NewUserRepository(pool))
	userService := application.NewUserService(users, newIDGenerator(), time.Now, logger)

	// The command runs with operator privileges, so it acts as an admin
	// principal without a session.
	user, err := userService.CreateUser(cmd.Context(), application.CreateUserParams{
		Principal: application.Principal{UserID: "system", IsAdmin: true},
		Input: application.UserInput{
			Email:       adminEmail,
			DisplayName: adminDisplayName,
			Password:    adminPassword,
			IsAdmin:     true,
			Timezone:    adminTimezone,
		},
	})
	if err != nil {
		return fmt.Errorf("create administrator: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created administrator %s (%s)\n", user.DisplayName, user.ID)
	return nil
}
