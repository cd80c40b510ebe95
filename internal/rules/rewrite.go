package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedRule is returned when a rule line does not have the shape
// "-A INPUT <predicate> -j <action>".
var ErrMalformedRule = errors.New("rules: malformed rule")

var appendRuleRe = regexp.MustCompile(`^-A\sINPUT\s(.*)\s-j\s(.+)$`)

// RewriteAction returns text with its terminal action replaced by action.
// The predicate is kept verbatim.
func RewriteAction(text, action string) (string, error) {
	pred, err := predicate(text)
	if err != nil {
		return "", err
	}
	return "-A INPUT " + pred + " -j " + action, nil
}

// predicate returns the match part of an appended INPUT rule.
func predicate(text string) (string, error) {
	m := appendRuleRe.FindStringSubmatch(text)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrMalformedRule, text)
	}
	return m[1], nil
}

// replaceArgs builds the tool arguments that replace rule n of the INPUT
// chain with the rewritten text. Rule positions in "-S INPUT" output start
// with the chain policy at 0, so n is also the tool's 1-based rule index.
func replaceArgs(n int, rewritten string) ([]string, error) {
	m := appendRuleRe.FindStringSubmatch(rewritten)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRule, rewritten)
	}
	args := []string{"-R", "INPUT", strconv.Itoa(n)}
	args = append(args, splitArgs(m[1])...)
	args = append(args, "-j", m[2])
	return args, nil
}

// splitArgs splits a rule predicate into argv words. Double-quoted words, as
// emitted by "-S" for comments containing spaces, are kept together with the
// quotes removed.
func splitArgs(s string) []string {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		inWord  bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && inQuote && i+1 < len(s):
			i++
			cur.WriteByte(s[i])
		case c == '"':
			inQuote = !inQuote
			inWord = true
		case (c == ' ' || c == '\t') && !inQuote:
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteByte(c)
			inWord = true
		}
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args
}
