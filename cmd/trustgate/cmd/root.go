// Package cmd provides the CLI commands for trustgate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trustgate/trustgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "trustgate",
	Short: "trustgate - a trust-enforcing MCP reverse proxy",
	Long: `trustgate sits in front of one or more MCP servers and refuses to forward
traffic to a service whose capability surface (tools, resources, resource
templates, prompts) has changed since an operator last approved it.

Quick start:
  1. Create a config file: trustgate.yaml
  2. Run: trustgate serve

Configuration:
  Config is loaded from trustgate.yaml in the current directory,
  $HOME/.trustgate/, or /etc/trustgate/.

  Environment variables can override config values with the TRUSTGATE_
  prefix. Example: TRUSTGATE_GATEWAY_LISTEN_ADDR=:9090

Commands:
  serve    Start the admin control plane and proxy gateway
  approve  Approve a service's latest snapshot from the command line
  version  Print version information`,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./trustgate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
