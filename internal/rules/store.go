package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrInvalidRuleNumber is returned when a rule number is out of range for
// the chain just fetched.
var ErrInvalidRuleNumber = errors.New("rules: invalid rule number")

// Observer receives store events. It is implemented by the metrics registry.
type Observer interface {
	ObserveFetch(version string, d time.Duration, err error)
	ObserveMutation(version, operation string, dryRun bool)
}

// Mutation describes one open/close request.
type Mutation struct {
	Version   IPVersion
	Operation Operation
	Number    int
	OldText   string
	NewText   string

	// Command is the full argv of the replace command.
	Command []string

	// DryRun is set when the command was logged instead of executed.
	DryRun bool
}

// Store fetches rule sets and applies open/close mutations. A Store keeps no
// rule state: every call re-reads the chain. Callers serialize mutations.
type Store struct {
	cfg        Config
	runner     Runner
	privileged bool
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
}

// NewStore creates a Store. Config defaults are applied automatically. When
// privileged is false, reads return the sample chains and writes are logged
// only.
func NewStore(cfg Config, runner Runner, privileged bool, logger *slog.Logger) *Store {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Timeout: cfg.CommandTimeout}
	}
	return &Store{
		cfg:        cfg,
		runner:     runner,
		privileged: privileged,
		logger:     logger.With("component", "rules"),
		now:        time.Now,
	}
}

// SetObserver registers o for fetch and mutation events.
func (s *Store) SetObserver(o Observer) {
	s.observer = o
}

// Privileged reports whether the store reads and writes the live firewall.
func (s *Store) Privileged() bool {
	return s.privileged
}

// Fetch reads and parses the current INPUT chain for v.
func (s *Store) Fetch(ctx context.Context, v IPVersion) (*RuleSet, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("rules: fetch: unsupported IP version %d", int(v))
	}
	if !s.privileged {
		return Parse(v, SampleRules(v), s.now()), nil
	}

	start := s.now()
	out, err := s.runner.Output(ctx, s.cfg.toolPath(v), "-S", "INPUT")
	if s.observer != nil {
		s.observer.ObserveFetch(v.String(), s.now().Sub(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("rules: fetch %s: %w", v, err)
	}
	return Parse(v, string(out), s.now()), nil
}

// Open rewrites rule n of v to the configured open action.
func (s *Store) Open(ctx context.Context, v IPVersion, n int) (*Mutation, error) {
	return s.mutate(ctx, v, n, OpOpen)
}

// Close rewrites rule n of v to the configured close action.
func (s *Store) Close(ctx context.Context, v IPVersion, n int) (*Mutation, error) {
	return s.mutate(ctx, v, n, OpClose)
}

func (s *Store) mutate(ctx context.Context, v IPVersion, n int, op Operation) (*Mutation, error) {
	rs, err := s.Fetch(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("rules: %s: %w", op, err)
	}
	rule, ok := rs.Rule(n)
	if !ok {
		return nil, fmt.Errorf("rules: %s %s rule %d of %d: %w", op, v, n, len(rs.Rules), ErrInvalidRuleNumber)
	}

	newText, err := RewriteAction(rule.Text, s.cfg.action(v, op))
	if err != nil {
		return nil, fmt.Errorf("rules: %s %s rule %d: %w", op, v, n, err)
	}
	args, err := replaceArgs(n, newText)
	if err != nil {
		return nil, fmt.Errorf("rules: %s %s rule %d: %w", op, v, n, err)
	}

	tool := s.cfg.toolPath(v)
	m := &Mutation{
		Version:   v,
		Operation: op,
		Number:    n,
		OldText:   rule.Text,
		NewText:   newText,
		Command:   append([]string{tool}, args...),
		DryRun:    !s.privileged || s.cfg.DryRun,
	}

	if m.DryRun {
		s.logger.Info("dry run, firewall not modified",
			"operation", string(op),
			"ip_version", v.String(),
			"rule", n,
			"command", strings.Join(m.Command, " "),
		)
	} else {
		if err := s.runner.Run(ctx, tool, args...); err != nil {
			return nil, fmt.Errorf("rules: %s %s rule %d: %w", op, v, n, err)
		}
		s.logger.Info("rule replaced",
			"operation", string(op),
			"ip_version", v.String(),
			"rule", n,
			"text", newText,
		)
	}

	if s.observer != nil {
		s.observer.ObserveMutation(v.String(), string(op), m.DryRun)
	}
	return m, nil
}
