package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/issue-engine/internal/clock"
	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/service"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the user directory",
	}
	cmd.AddCommand(newUserAddCmd(), newUserListCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var name, email, role string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a citizen, engineer or admin",
		Example: `  issuectl user add --name "Erin" --email erin@city.example --role ENGINEER
  issuectl user add --name "Ada" --email ada@city.example --role ADMIN`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.close()

			users := service.NewUserService(e.store, clock.Real(), e.logger)
			user, err := users.CreateUser(cmd.Context(), service.CreateUserInput{
				Name:  name,
				Email: email,
				Role:  domain.Role(strings.ToUpper(role)),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", user.ID, user.Role, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "unique email address")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleCitizen), "CITIZEN, ENGINEER or ADMIN")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserListCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List directory entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.close()

			users, err := e.store.Users().ListByRole(cmd.Context(), domain.Role(strings.ToUpper(role)))
			if err != nil {
				return err
			}
			for _, user := range users {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", user.ID, user.Role, user.Email, user.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "only list users holding this role")
	return cmd
}
