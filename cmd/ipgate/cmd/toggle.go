package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plexsphere/ipgate/internal/rules"
)

var openCmd = &cobra.Command{
	Use:   "open <ipv4|ipv6> <number>",
	Short: "Open a firewall rule",
	Long:  "Rewrite the target of a rule to the configured open action (ACCEPT by default).",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle(cmd, rules.OpOpen, args)
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <ipv4|ipv6> <number>",
	Short: "Close a firewall rule",
	Long:  "Rewrite the target of a rule to the configured close action (LOG_DROP2 by default).",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle(cmd, rules.OpClose, args)
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(closeCmd)
}

func runToggle(cmd *cobra.Command, op rules.Operation, args []string) error {
	if !validVersionArg(args[0]) {
		return fmt.Errorf("ipgate %s: invalid IP version %q (must be ipv4 or ipv6)", op, args[0])
	}
	version := strings.ToLower(args[0])
	if _, err := strconv.ParseUint(args[1], 10, 31); err != nil {
		return fmt.Errorf("ipgate %s: invalid rule number %q", op, args[1])
	}

	if _, err := apiRequest(cmd, "PUT", rulesURL(version, args[1], string(op))); err != nil {
		return fmt.Errorf("ipgate %s: %w", op, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s rule %s: %s\n", version, args[1], op)
	return nil
}
