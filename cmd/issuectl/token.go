package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/issue-engine/internal/auth"
	"github.com/spec-kit/issue-engine/internal/clock"
	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/repository"
)

func newTokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a directory user",
		Long: `Mint a bearer token signed with AUTH_JWT_SECRET for local development.
The role and email are read from the directory, so the token matches what
the session gateway would issue for the same user.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.close()

			user, err := e.store.Users().GetByID(cmd.Context(), userID)
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("user %s not found", userID)
			}
			if err != nil {
				return err
			}

			if ttl <= 0 {
				ttl = e.cfg.Auth.AccessTokenTTL()
			}
			tokens := auth.NewTokenManager(e.cfg.Auth.JWTSecret, e.cfg.Auth.Issuer, ttl, clock.Real())
			token, expiresAt, err := tokens.GenerateToken(domain.Caller{ID: user.ID, Role: user.Role, Email: user.Email})
			if err != nil {
				return fmt.Errorf("signing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "directory user id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
