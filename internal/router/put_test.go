package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/plexsphere/ipgate/internal/rules"
	"github.com/plexsphere/ipgate/internal/wire"
)

// chainRunner stands in for iptables. It keeps a live chain, answers
// "-S INPUT" from it and applies "-R INPUT n ..." to it, recording every call.
type chainRunner struct {
	mu     sync.Mutex
	lines  []string
	events []chainEvent

	// delay widens the window between a fetch and the following replace.
	delay time.Duration
}

type chainEvent struct {
	kind     string // "fetch" or "replace"
	snapshot []string
	number   int
	newText  string
}

func newChainRunner(chain string) *chainRunner {
	return &chainRunner{
		lines: strings.Split(strings.TrimSpace(chain), "\n"),
		delay: 2 * time.Millisecond,
	}
}

func (c *chainRunner) Output(_ context.Context, _ string, args ...string) ([]byte, error) {
	if len(args) != 2 || args[0] != "-S" || args[1] != "INPUT" {
		return nil, fmt.Errorf("unexpected args %q", args)
	}
	c.mu.Lock()
	snapshot := append([]string(nil), c.lines...)
	c.events = append(c.events, chainEvent{kind: "fetch", snapshot: snapshot})
	c.mu.Unlock()

	time.Sleep(c.delay)
	return []byte(strings.Join(snapshot, "\n") + "\n"), nil
}

func (c *chainRunner) Run(_ context.Context, _ string, args ...string) error {
	if len(args) < 4 || args[0] != "-R" || args[1] != "INPUT" {
		return fmt.Errorf("unexpected args %q", args)
	}
	n, err := strconv.Atoi(args[2])
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 || n >= len(c.lines) {
		return fmt.Errorf("index of replacement too big")
	}
	text := "-A INPUT " + strings.Join(args[3:], " ")
	c.lines[n] = text
	c.events = append(c.events, chainEvent{kind: "replace", number: n, newText: text})
	return nil
}

func predicate(text string) string {
	i := strings.LastIndex(text, " -j ")
	if i < 0 {
		return text
	}
	return text[:i]
}

func TestPut_ConcurrentMutationsDoNotInterleave(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := newChainRunner(rules.SampleRulesIPv4)
	store := rules.NewStore(rules.Config{}, runner, true, discardLogger())
	r := newTestRouter(store)

	targets := []string{
		"/v1/rules/ipv4/5/open",
		"/v1/rules/ipv4/5/close",
		"/v1/rules/ipv4/4/close",
		"/v1/rules/ipv4/6/open",
	}

	const perTarget = 5
	var reqs []*wire.Request
	for i := 0; i < perTarget; i++ {
		for _, target := range targets {
			req, err := wire.DecodeRequest([]byte("PUT " + target + " HTTP/1.1\r\nHost: fw\r\n\r\n"))
			if err != nil {
				t.Fatalf("DecodeRequest: %v", err)
			}
			reqs = append(reqs, req)
		}
	}

	var wg sync.WaitGroup
	statuses := make(chan int, len(reqs))
	for _, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses <- r.Handle(context.Background(), req).StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	for status := range statuses {
		if status != 200 {
			t.Errorf("PUT status = %d, want 200", status)
		}
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()

	want := 2 * len(targets) * perTarget
	if len(runner.events) != want {
		t.Fatalf("events = %d, want %d", len(runner.events), want)
	}

	// Each replace directly follows the fetch of its own request and rewrites
	// the rule text that fetch returned.
	for i := 0; i < len(runner.events); i += 2 {
		fetch, replace := runner.events[i], runner.events[i+1]
		if fetch.kind != "fetch" || replace.kind != "replace" {
			t.Fatalf("events %d,%d = %s,%s, want fetch,replace", i, i+1, fetch.kind, replace.kind)
		}
		fetched := fetch.snapshot[replace.number]
		if predicate(fetched) != predicate(replace.newText) {
			t.Errorf("replace %d rewrote %q from fetched %q", replace.number, replace.newText, fetched)
		}
	}
}

func TestPut_PrivilegedReplacesLiveRule(t *testing.T) {
	runner := newChainRunner(rules.SampleRulesIPv4)
	runner.delay = 0
	store := rules.NewStore(rules.Config{}, runner, true, discardLogger())
	r := newTestRouter(store)

	if resp := do(t, r, "PUT", "/v1/rules/ipv4/5/open", "fw"); resp.StatusCode != 200 {
		t.Fatalf("open status = %d, body %s", resp.StatusCode, resp.Body)
	}
	out := decodeRules(t, do(t, r, "GET", "/v1/rules/ipv4/5", "fw"))
	if got := out["ipv4"].Rules[0].Text; !strings.HasSuffix(got, "--comment Public_HTTP -j ACCEPT") {
		t.Errorf("rule 5 after open = %q", got)
	}

	if resp := do(t, r, "PUT", "/v1/rules/ipv4/5/close", "fw"); resp.StatusCode != 200 {
		t.Fatalf("close status = %d, body %s", resp.StatusCode, resp.Body)
	}
	out = decodeRules(t, do(t, r, "GET", "/v1/rules/ipv4/5", "fw"))
	if got := out["ipv4"].Rules[0].Text; !strings.HasSuffix(got, "--comment Public_HTTP -j LOG_DROP2") {
		t.Errorf("rule 5 after close = %q", got)
	}

	// Only rule 5 changed.
	out = decodeRules(t, do(t, r, "GET", "/v1/rules/ipv4?action=accept", "fw"))
	if got := ruleNumbers(out["ipv4"].Rules); !equalInts(got, []int{1, 2, 3, 4}) {
		t.Errorf("accept rules = %v", got)
	}
}
