package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/plexsphere/ipgate/internal/metrics"
	"github.com/plexsphere/ipgate/internal/router"
	"github.com/plexsphere/ipgate/internal/rules"
	"github.com/plexsphere/ipgate/internal/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type handlerFunc func(ctx context.Context, req *wire.Request) *wire.Response

func (f handlerFunc) Handle(ctx context.Context, req *wire.Request) *wire.Response {
	return f(ctx, req)
}

func sampleHandler() Handler {
	store := rules.NewStore(rules.Config{}, nil, false, discardLogger())
	return router.New(router.Config{}, store, discardLogger())
}

// startServer runs a server on a loopback port and returns it together with
// an idempotent stop function that reports Start's result.
func startServer(t *testing.T, cfg Config, h Handler, reg *metrics.Registry) (*Server, func() error) {
	t.Helper()
	cfg.Listen = "127.0.0.1:0"
	srv := NewServer(cfg, h, reg, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	var once sync.Once
	var stopErr error
	stop := func() error {
		once.Do(func() {
			cancel()
			stopErr = <-errCh
		})
		return stopErr
	}
	t.Cleanup(func() { stop() })

	select {
	case <-srv.Ready():
	case err := <-errCh:
		cancel()
		t.Fatalf("Start: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not become ready")
	}
	return srv, stop
}

// exchange writes raw to the server and reads until the server closes.
func exchange(t *testing.T, addr net.Addr, raw string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := conn.Write([]byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(out)
}

func splitResponse(t *testing.T, resp string) (statusLine string, header map[string]string, body string) {
	t.Helper()
	head, body, ok := strings.Cut(resp, "\r\n\r\n")
	if !ok {
		t.Fatalf("response has no header terminator: %q", resp)
	}
	lines := strings.Split(head, "\r\n")
	header = make(map[string]string)
	for _, l := range lines[1:] {
		k, v, _ := strings.Cut(l, ": ")
		header[k] = v
	}
	return lines[0], header, body
}

func TestServer_GetRules(t *testing.T) {
	srv, stop := startServer(t, Config{}, sampleHandler(), nil)

	resp := exchange(t, srv.Addr(), "GET /v1/rules/ipv4?comment=Public_SSH HTTP/1.1\r\nHost: fw.example\r\nAccept: */*\r\n\r\n")
	status, header, body := splitResponse(t, resp)

	if status != "HTTP/1.1 200 OK" {
		t.Fatalf("status line = %q", status)
	}
	if header["Content-Type"] != wire.ContentTypeJSON {
		t.Errorf("Content-Type = %q", header["Content-Type"])
	}
	if header["Cache-Control"] != "no-cache" {
		t.Errorf("Cache-Control = %q", header["Cache-Control"])
	}

	var out map[string]struct {
		Datetime string       `json:"datetime"`
		Rules    []rules.Rule `json:"rules"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("unmarshal %q: %v", body, err)
	}
	got := out["ipv4"].Rules
	if len(got) != 1 || got[0].Number != 4 {
		t.Fatalf("rules = %+v, want rule 4", got)
	}
	if got[0].OpenLink != "http://fw.example/v1/rules/ipv4/4/open" {
		t.Errorf("xopen = %q", got[0].OpenLink)
	}

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Start returned %v, want context.Canceled", err)
	}
	if st := srv.Stats(); st.Connections != 1 || st.Requests != 1 || st.Active != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestServer_MalformedRequest(t *testing.T) {
	reg := metrics.New()
	srv, _ := startServer(t, Config{}, sampleHandler(), reg)

	resp := exchange(t, srv.Addr(), "garbage\r\n\r\n")
	status, _, body := splitResponse(t, resp)

	if status != "HTTP/1.1 400 Bad Request" {
		t.Fatalf("status line = %q", status)
	}
	var p wire.Problem
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Detail != "Malformed request" {
		t.Errorf("detail = %q", p.Detail)
	}
	if got := srv.Stats().Malformed; got != 1 {
		t.Errorf("Malformed = %d, want 1", got)
	}
	if got := testutil.ToFloat64(reg.MalformedRequests); got != 1 {
		t.Errorf("malformed metric = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reg.RequestsTotal.WithLabelValues("MALFORMED", "400")); got != 1 {
		t.Errorf("requests metric = %v, want 1", got)
	}
}

func TestServer_OversizedRequestIsTruncated(t *testing.T) {
	srv := NewServer(Config{ReadBufferSize: 16}, sampleHandler(), nil, discardLogger())

	// A pipe keeps the unread tail of the request from resetting the
	// connection before the response is read.
	client, conn := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.serveConn(context.Background(), conn)
	}()
	go client.Write([]byte("GET /v1/rules/ipv4/1 HTTP/1.1\r\nHost: fw\r\n\r\n"))

	out, _ := io.ReadAll(client)
	<-done

	status, _, body := splitResponse(t, string(out))
	if status != "HTTP/1.1 400 Bad Request" {
		t.Errorf("status line = %q", status)
	}
	if !strings.Contains(body, `"detail":"Malformed request"`) {
		t.Errorf("body = %q", body)
	}
	if got := srv.Stats().Malformed; got != 1 {
		t.Errorf("Malformed = %d, want 1", got)
	}
}

func TestServer_PanicDoesNotStopListener(t *testing.T) {
	reg := metrics.New()
	h := handlerFunc(func(_ context.Context, req *wire.Request) *wire.Response {
		if req.Path == "/boom" {
			panic("handler exploded")
		}
		resp := wire.NewResponse(200, time.Now())
		resp.SetBody([]byte("{}"))
		return resp
	})
	srv, _ := startServer(t, Config{}, h, reg)

	if resp := exchange(t, srv.Addr(), "GET /boom HTTP/1.1\r\n\r\n"); resp != "" {
		t.Errorf("panicking handler produced %q, want closed connection", resp)
	}

	resp := exchange(t, srv.Addr(), "GET /ok HTTP/1.1\r\n\r\n")
	if status, _, _ := splitResponse(t, resp); status != "HTTP/1.1 200 OK" {
		t.Errorf("status after panic = %q", status)
	}
	if got := srv.Stats().Panics; got != 1 {
		t.Errorf("Panics = %d, want 1", got)
	}
	if got := testutil.ToFloat64(reg.HandlerPanics); got != 1 {
		t.Errorf("panic metric = %v, want 1", got)
	}
}

func TestServer_ConcurrentConnections(t *testing.T) {
	srv, _ := startServer(t, Config{}, sampleHandler(), nil)

	const n = 20
	var wg sync.WaitGroup
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := net.Dial("tcp", srv.Addr().String())
			if err != nil {
				results <- "dial: " + err.Error()
				return
			}
			defer conn.Close()
			conn.SetDeadline(time.Now().Add(5 * time.Second))
			conn.Write([]byte("HEAD /v1/rules HTTP/1.1\r\nHost: fw\r\n\r\n"))
			line, err := bufio.NewReader(conn).ReadString('\n')
			if err != nil {
				results <- "read: " + err.Error()
				return
			}
			results <- strings.TrimSpace(line)
		}()
	}
	wg.Wait()
	close(results)

	for r := range results {
		if r != "HTTP/1.1 200 OK" {
			t.Errorf("result = %q", r)
		}
	}
}

func TestServer_ShutdownWaitsForInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	h := handlerFunc(func(_ context.Context, _ *wire.Request) *wire.Response {
		close(started)
		<-release
		return wire.NewResponse(200, time.Now())
	})
	srv, stop := startServer(t, Config{ShutdownTimeout: 2 * time.Second}, h, nil)

	respCh := make(chan string, 1)
	go func() {
		conn, err := net.Dial("tcp", srv.Addr().String())
		if err != nil {
			respCh <- ""
			return
		}
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(5 * time.Second))
		conn.Write([]byte("PUT /v1/rules/ipv4/1/open HTTP/1.1\r\n\r\n"))
		out, _ := io.ReadAll(conn)
		respCh <- string(out)
	}()

	<-started
	stopped := make(chan error, 1)
	go func() { stopped <- stop() }()

	// The listener closes while the request is still being handled.
	time.Sleep(50 * time.Millisecond)
	if _, err := net.DialTimeout("tcp", srv.Addr().String(), 200*time.Millisecond); err == nil {
		t.Error("dial after shutdown started succeeded")
	}

	close(release)
	if resp := <-respCh; !strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("in-flight response = %q", resp)
	}
	if err := <-stopped; !errors.Is(err, context.Canceled) {
		t.Errorf("Start returned %v", err)
	}
}

func TestServer_ShutdownTimeoutCancelsHandlers(t *testing.T) {
	started := make(chan struct{})
	h := handlerFunc(func(ctx context.Context, _ *wire.Request) *wire.Response {
		close(started)
		<-ctx.Done()
		return wire.NewResponse(503, time.Now())
	})
	srv, stop := startServer(t, Config{ShutdownTimeout: 100 * time.Millisecond}, h, nil)

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.Write([]byte("GET /v1/rules HTTP/1.1\r\n\r\n"))
	<-started

	done := make(chan error, 1)
	go func() { done <- stop() }()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after the shutdown timeout")
	}
}

func TestServer_MetricsListener(t *testing.T) {
	srv, _ := startServer(t, Config{MetricsListen: "127.0.0.1:0"}, sampleHandler(), nil)

	exchange(t, srv.Addr(), "GET /v1/rules/ipv6 HTTP/1.1\r\nHost: fw\r\n\r\n")

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + srv.MetricsAddr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `ipgate_requests_total{code="200",method="GET"} 1`) {
		t.Errorf("metrics missing request counter:\n%s", body)
	}
}

func TestServer_NoMetricsListenerByDefault(t *testing.T) {
	srv, _ := startServer(t, Config{}, sampleHandler(), nil)
	if srv.MetricsAddr() != nil {
		t.Errorf("MetricsAddr = %v, want nil", srv.MetricsAddr())
	}
}

func TestServer_InvalidConfig(t *testing.T) {
	srv := NewServer(Config{Listen: "no-port"}, sampleHandler(), nil, discardLogger())
	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("Start with invalid Listen succeeded")
	}
	if srv.Addr() != nil {
		t.Error("Addr set after failed Start")
	}
}

func TestMethodLabel(t *testing.T) {
	for in, want := range map[string]string{
		"GET":     "GET",
		"DELETE":  "DELETE",
		"PATCH":   "OTHER",
		"OPTIONS": "OTHER",
	} {
		if got := methodLabel(in); got != want {
			t.Errorf("methodLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
