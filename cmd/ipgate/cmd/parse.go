package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/plexsphere/ipgate/internal/rules"
)

var (
	parseIPVersion string
	parseSample    bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [file|-]",
	Short: "Parse an iptables -S INPUT dump",
	Long: "Parse the output of \"iptables -S INPUT\" offline and print the rules with\n" +
		"their action, protocol, comment and port indexes. Reads stdin for \"-\".",
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVar(&parseIPVersion, "ip", "ipv4", "IP version of the dump (ipv4, ipv6)")
	parseCmd.Flags().BoolVar(&parseSample, "sample", false, "parse the built-in sample rules")
	rootCmd.AddCommand(parseCmd)
}

// parsedRules is the JSON form of a RuleSet including its indexes.
type parsedRules struct {
	IPVersion  string           `json:"ip_version"`
	Datetime   string           `json:"datetime"`
	Rules      []rules.Rule     `json:"rules"`
	Accept     []int            `json:"accept"`
	Drop       []int            `json:"drop"`
	ByProtocol map[string][]int `json:"by_protocol"`
	ByComment  map[string]int   `json:"by_comment"`
	ByPort     map[int]int      `json:"by_port"`
}

func runParse(cmd *cobra.Command, args []string) error {
	v, err := rules.ParseIPVersion(parseIPVersion)
	if err != nil {
		return fmt.Errorf("ipgate parse: %w", err)
	}

	var text string
	switch {
	case parseSample:
		text = rules.SampleRules(v)
	case len(args) == 0:
		return fmt.Errorf("ipgate parse: a file, \"-\" or --sample is required")
	case args[0] == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("ipgate parse: read stdin: %w", err)
		}
		text = string(data)
	default:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("ipgate parse: %w", err)
		}
		text = string(data)
	}

	rs := rules.Parse(v, text, time.Now())
	out := parsedRules{
		IPVersion:  rs.Version.String(),
		Datetime:   rs.Datetime(),
		Rules:      rs.Rules,
		Accept:     rs.Accept,
		Drop:       rs.Drop,
		ByProtocol: rs.ByProtocol,
		ByComment:  rs.ByComment,
		ByPort:     rs.ByPort,
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
