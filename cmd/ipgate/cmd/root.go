// Package cmd implements the ipgate CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/ipgate/internal/config"
	"github.com/plexsphere/ipgate/internal/server"
)

var (
	cfgFile  string
	logLevel string
	addr     string
)

// Build info set from main.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo sets the version info from build-time ldflags.
func SetVersionInfo(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("ipgate version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

var rootCmd = &cobra.Command{
	Use:   "ipgate",
	Short: "ipgate exposes the iptables INPUT chain over HTTP",
	Long: "ipgate is a small HTTP service that lists the IPv4 and IPv6 INPUT chain rules\n" +
		"as JSON and opens or closes individual rules by rewriting their target.\n" +
		"Without root privileges it serves built-in sample rules and only logs changes.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error; overrides config)")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", server.DefaultListen, "service address (serve: overrides server.listen)")

	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("ipgate version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
