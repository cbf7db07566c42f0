package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewUsersCmd manages player records in the configured progress store.
func NewUsersCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Create or delete player records",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <username>",
		Short: "Create a player record and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()
			service, err := rt.gameService()
			if err != nil {
				return err
			}
			user, err := service.CreateUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), user.ID)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a player with all progress and guessed names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()
			service, err := rt.gameService()
			if err != nil {
				return err
			}
			if err := service.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			rt.logger.Info("user deleted", "user_id", args[0])
			return nil
		},
	})
	return cmd
}
