package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/ipgate/internal/packaging"
	"github.com/plexsphere/ipgate/internal/rules"
)

var (
	installBinaryPath string
	installEnable     bool
	uninstallPurge    bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install ipgate as a systemd service",
	Long: "Copy this binary to --binary-path, write a default config to --config unless\n" +
		"one exists, write the systemd unit and reload systemd. --addr becomes\n" +
		"server.listen in a new config.",
	Args: cobra.NoArgs,
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the ipgate systemd service",
	Args:  cobra.NoArgs,
	RunE:  runUninstall,
}

func init() {
	installCmd.Flags().StringVar(&installBinaryPath, "binary-path", packaging.DefaultBinaryPath, "install path of the binary")
	installCmd.Flags().BoolVar(&installEnable, "enable", false, "enable the service to start on boot")
	uninstallCmd.Flags().StringVar(&installBinaryPath, "binary-path", packaging.DefaultBinaryPath, "install path of the binary")
	uninstallCmd.Flags().BoolVar(&uninstallPurge, "purge", false, "also remove the config file")
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
}

func newInstaller() *packaging.Installer {
	cfg := packaging.InstallConfig{
		BinaryPath: installBinaryPath,
		ConfigPath: cfgFile,
		Listen:     addr,
		Enable:     installEnable,
	}
	return packaging.NewInstaller(cfg, packaging.NewSystemdController(), rules.Privileged(), setupLogger(logLevel))
}

func runInstall(cmd *cobra.Command, _ []string) error {
	if err := newInstaller().Install(cmd.Context()); err != nil {
		return fmt.Errorf("ipgate install: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ipgate installed successfully")
	return nil
}

func runUninstall(cmd *cobra.Command, _ []string) error {
	if err := newInstaller().Uninstall(cmd.Context(), uninstallPurge); err != nil {
		return fmt.Errorf("ipgate uninstall: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ipgate uninstalled")
	return nil
}
