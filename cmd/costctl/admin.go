package main

import (
	"fmt"

	"costtrack-backend/database"
	"costtrack-backend/models"
	"costtrack-backend/services"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update all tables and constraints",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		fmt.Println("migration complete")
		return nil
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin user",
	Example: `  costctl create-admin --email admin@example.com --password 's3cret-pass' \
    --first-name Site --last-name Admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		first, _ := cmd.Flags().GetString("first-name")
		last, _ := cmd.Flags().GetString("last-name")

		_, db, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		user, err := services.CreateUser(cmd.Context(), db, services.SystemContext(), services.UserInput{
			FirstName: first,
			LastName:  last,
			Email:     email,
			Password:  password,
			Role:      string(models.RoleAdmin),
		})
		if err != nil {
			return err
		}
		fmt.Printf("created admin %s (%s)\n", user.Email, user.Id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)

	createAdminCmd.Flags().String("email", "", "Admin email (required)")
	createAdminCmd.Flags().String("password", "", "Admin password, at least 8 characters (required)")
	createAdminCmd.Flags().String("first-name", "Admin", "First name")
	createAdminCmd.Flags().String("last-name", "User", "Last name")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
}
