package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

var hashArgon2id bool

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api-key]",
	Short: "Hash a gateway API key",
	Long: `Hash a gateway API key the way the gateway store keeps it.

The default output format is "sha256:<hex>". With --argon2id the output is
a salted PHC string ("$argon2id$v=19$..."). Both formats are accepted by the
gateway resolver.

Example:
  accessgate hash-key "my-gateway-key"
  # Output: sha256:7d5e8c...

Security note: The key will appear in shell history.
Consider clearing history after use or using environment variable:
  accessgate hash-key "$GATEWAY_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash := tenant.HashKey(args[0])
		if hashArgon2id {
			var err error
			if hash, err = tenant.HashKeyArgon2id(args[0]); err != nil {
				return fmt.Errorf("hash key: %w", err)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	hashKeyCmd.Flags().BoolVar(&hashArgon2id, "argon2id", false, "use a salted Argon2id hash instead of SHA-256")
	rootCmd.AddCommand(hashKeyCmd)
}
