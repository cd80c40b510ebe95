package cmd

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	filterAction   string
	filterProtocol string
	filterComment  string
	filterPort     string
	rulesHead      bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules [ipv4|ipv6] [number]",
	Short: "List firewall rules",
	Long: "Fetch rules from a running ipgate service and print them as JSON.\n" +
		"At most one of --action, --protocol, --comment and --port may be given.",
	Example: "  ipgate rules\n" +
		"  ipgate rules ipv4 --action accept\n" +
		"  ipgate rules ipv6 5",
	Args: cobra.RangeArgs(0, 2),
	RunE: runRules,
}

func init() {
	rulesCmd.Flags().StringVar(&filterAction, "action", "", "filter by action (accept, drop)")
	rulesCmd.Flags().StringVar(&filterProtocol, "protocol", "", "filter by protocol (icmp, tcp, udp)")
	rulesCmd.Flags().StringVar(&filterComment, "comment", "", "filter by rule comment")
	rulesCmd.Flags().StringVar(&filterPort, "port", "", "filter by destination port")
	rulesCmd.Flags().BoolVar(&rulesHead, "head", false, "send HEAD and print the response size only")
	rulesCmd.MarkFlagsMutuallyExclusive("action", "protocol", "comment", "port")
	rootCmd.AddCommand(rulesCmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	target, err := rulesTarget(args)
	if err != nil {
		return fmt.Errorf("ipgate rules: %w", err)
	}
	if q := rulesQuery(cmd); q != "" {
		target += "?" + q
	}

	if rulesHead {
		return runRulesHead(cmd, target)
	}

	body, err := apiRequest(cmd, "GET", target)
	if err != nil {
		return fmt.Errorf("ipgate rules: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), body)
}

func runRulesHead(cmd *cobra.Command, target string) error {
	resp, _, err := apiDo(cmd, "HEAD", target)
	if err != nil {
		return fmt.Errorf("ipgate rules: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s, %d bytes\n", resp.Status, resp.ContentLength)
	return nil
}

func rulesTarget(args []string) (string, error) {
	parts := make([]string, 0, len(args))
	if len(args) >= 1 {
		if !validVersionArg(args[0]) {
			return "", fmt.Errorf("invalid IP version %q (must be ipv4 or ipv6)", args[0])
		}
		parts = append(parts, strings.ToLower(args[0]))
	}
	if len(args) == 2 {
		if _, err := strconv.ParseUint(args[1], 10, 31); err != nil {
			return "", fmt.Errorf("invalid rule number %q", args[1])
		}
		parts = append(parts, args[1])
	}
	return rulesURL(parts...), nil
}

// rulesQuery returns the single filter query, or "" when no filter is set.
func rulesQuery(cmd *cobra.Command) string {
	for _, name := range []string{"action", "protocol", "comment", "port"} {
		f := cmd.Flags().Lookup(name)
		if f != nil && f.Changed {
			return name + "=" + url.QueryEscape(f.Value.String())
		}
	}
	return ""
}
