package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	api "github.com/Sentinel-Gate/accessgate/internal/adapter/inbound/http"
	"github.com/Sentinel-Gate/accessgate/internal/config"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

var (
	tokenOrg     string
	tokenRole    string
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin token for the internal API",
	Long: `Sign an HS256 admin token with admin.jwt_secret.

SUPER_ADMIN tokens may address every organization; other roles are limited
to --org.

Example:
  accessgate token --org acme --role ORG_ADMIN --ttl 8h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if cfg.Admin.JWTSecret == "" {
			return errors.New("admin.jwt_secret is not set; the internal API accepts localhost requests without a token")
		}
		role := tenant.Role(tokenRole)
		if role != tenant.RoleSuperAdmin && tokenOrg == "" {
			return fmt.Errorf("--org is required for role %s", role)
		}
		tok, err := api.SignToken([]byte(cfg.Admin.JWTSecret), tokenSubject, tenant.OrgID(tokenOrg), role, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOrg, "org", "", "organization the token is scoped to")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(tenant.RoleOrgAdmin), "SUPER_ADMIN, ORG_ADMIN, SEC_ANALYST or ENGINEER")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "cli", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
