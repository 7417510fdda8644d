package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"site-cloner/internal/security"
)

var tokenFlags struct {
	subject  string
	username string
	roles    []string
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token signed with security.jwt_secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Security.JWTSecret == "" {
			return errors.New("security.jwt_secret is not set")
		}
		roles := tokenFlags.roles
		if len(roles) == 0 {
			roles = []string{cfg.Security.AdminRole}
		}
		token, err := security.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.JWTExpiration).
			GenerateToken(tokenFlags.subject, tokenFlags.username, roles)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenFlags.subject, "subject", "", "User ID the token is issued for")
	f.StringVar(&tokenFlags.username, "username", "", "User name carried in the token")
	f.StringSliceVar(&tokenFlags.roles, "role", nil, "Roles carried in the token (default: security.admin_role)")
	_ = tokenCmd.MarkFlagRequired("subject")
}
