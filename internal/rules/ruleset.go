package rules

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DatetimeLayout renders RuleSet.FetchedAt in responses.
const DatetimeLayout = "2006.01.02-15:04:05.000000 UTC"

// Protocol buckets indexed by Parse.
const (
	ProtoICMP = "icmp"
	ProtoTCP  = "tcp"
	ProtoUDP  = "udp"
)

// Protocols lists the indexed protocol buckets.
var Protocols = []string{ProtoICMP, ProtoTCP, ProtoUDP}

var (
	acceptRe  = regexp.MustCompile(`-j\sACCEPT`)
	dropRe    = regexp.MustCompile(`-j\sLOG_DROP`)
	icmpRe    = regexp.MustCompile(`-p\sicmp|-p\sipv6-icmp`)
	tcpRe     = regexp.MustCompile(`-p\stcp`)
	udpRe     = regexp.MustCompile(`-p\sudp`)
	commentRe = regexp.MustCompile(`--comment\s(\S+)`)
	dportRe   = regexp.MustCompile(`--dport\s(\S+)`)
)

// Rule is one directive line of the chain.
type Rule struct {
	// Number is the 0-based position of the line in the fetch that produced
	// it. It is not stable across fetches.
	Number int    `json:"number"`
	Text   string `json:"text"`

	// OpenLink and CloseLink are only set on commented rules.
	OpenLink  string `json:"xopen,omitempty"`
	CloseLink string `json:"xclose,omitempty"`
}

// RuleSet is the parsed INPUT chain of one IP version at FetchedAt.
// Every number held by an index is a valid position in Rules.
type RuleSet struct {
	Version   IPVersion
	FetchedAt time.Time
	Rules     []Rule

	Accept     []int
	Drop       []int
	ByProtocol map[string][]int

	// ByComment and ByPort keep the last rule seen for a key.
	ByComment map[string]int
	ByPort    map[int]int
}

// Parse builds a RuleSet from "-S INPUT" output. Lines shorter than four
// characters are ignored; every other line becomes a rule, numbered in order,
// and is classified independently by each index. Unrecognized constructs are
// kept as rules but not indexed.
func Parse(v IPVersion, text string, fetchedAt time.Time) *RuleSet {
	rs := &RuleSet{
		Version:    v,
		FetchedAt:  fetchedAt,
		Rules:      []Rule{},
		Accept:     []int{},
		Drop:       []int{},
		ByProtocol: make(map[string][]int, len(Protocols)),
		ByComment:  make(map[string]int),
		ByPort:     make(map[int]int),
	}
	for _, p := range Protocols {
		rs.ByProtocol[p] = []int{}
	}

	n := 0
	for _, line := range strings.Split(text, "\n") {
		if len(line) < 4 {
			continue
		}
		if acceptRe.MatchString(line) {
			rs.Accept = append(rs.Accept, n)
		}
		if dropRe.MatchString(line) {
			rs.Drop = append(rs.Drop, n)
		}
		if icmpRe.MatchString(line) {
			rs.ByProtocol[ProtoICMP] = append(rs.ByProtocol[ProtoICMP], n)
		}
		if tcpRe.MatchString(line) {
			rs.ByProtocol[ProtoTCP] = append(rs.ByProtocol[ProtoTCP], n)
		}
		if udpRe.MatchString(line) {
			rs.ByProtocol[ProtoUDP] = append(rs.ByProtocol[ProtoUDP], n)
		}
		if m := commentRe.FindStringSubmatch(line); m != nil {
			rs.ByComment[m[1]] = n
		}
		if m := dportRe.FindStringSubmatch(line); m != nil {
			// Port ranges and named services are not indexed.
			if port, err := strconv.Atoi(m[1]); err == nil {
				rs.ByPort[port] = n
			}
		}
		rs.Rules = append(rs.Rules, Rule{Number: n, Text: line})
		n++
	}
	return rs
}

// Datetime returns FetchedAt in DatetimeLayout.
func (rs *RuleSet) Datetime() string {
	return rs.FetchedAt.UTC().Format(DatetimeLayout)
}

// Rule returns the rule at position n.
func (rs *RuleSet) Rule(n int) (Rule, bool) {
	if n < 0 || n >= len(rs.Rules) {
		return Rule{}, false
	}
	return rs.Rules[n], true
}

// Select returns the rules at the given positions, in the order given.
// Positions out of range are skipped.
func (rs *RuleSet) Select(numbers []int) []Rule {
	out := make([]Rule, 0, len(numbers))
	for _, n := range numbers {
		if r, ok := rs.Rule(n); ok {
			out = append(out, r)
		}
	}
	return out
}

// ByAction returns the index for "accept" or "drop".
func (rs *RuleSet) ByAction(action string) ([]int, bool) {
	switch action {
	case "accept":
		return rs.Accept, true
	case "drop":
		return rs.Drop, true
	default:
		return nil, false
	}
}

// Comment returns the comment token of rule n, if it has one.
func (rs *RuleSet) Comment(n int) (string, bool) {
	r, ok := rs.Rule(n)
	if !ok {
		return "", false
	}
	m := commentRe.FindStringSubmatch(r.Text)
	if m == nil {
		return "", false
	}
	return m[1], true
}
