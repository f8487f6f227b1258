// Package cmd provides the CLI commands for accessgate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/accessgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "accessgate",
	Short: "accessgate - zero-trust access policy control plane",
	Long: `accessgate decides whether access requests reported by edge gateways are
allowed, using per-organization security policies, and records every
decision for session tracking and audit.

Quick start:
  1. Run: accessgate start --dev
  2. Evaluate: curl -H 'X-API-Key: acme-gw-key-123' \
       -d '{"userId":"u1","userRole":"ENGINEER","deviceTrustLevel":"HIGH","country":"US","resource":"ssh://internal.acme.com/server1"}' \
       http://127.0.0.1:8080/api/gateway/evaluate

Configuration:
  Config is loaded from accessgate.yaml in the current directory,
  $HOME/.accessgate/, or /etc/accessgate/.

  Environment variables can override config values with the ACCESSGATE_ prefix.
  Example: ACCESSGATE_SERVER_HTTP_ADDR=:9090

Commands:
  start       Start the control plane
  stop        Stop the running server
  seed        Load organizations, policies and gateways from YAML
  hash-key    Hash a gateway API key
  token       Issue an admin token for the internal API
  simulate    Generate synthetic gateway traffic
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./accessgate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
