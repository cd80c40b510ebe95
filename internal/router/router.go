// Package router maps decoded requests to rule store operations and builds
// the JSON responses of the rules API.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/plexsphere/ipgate/internal/rules"
	"github.com/plexsphere/ipgate/internal/wire"
)

// Store is the subset of rules.Store used by the router.
type Store interface {
	Fetch(ctx context.Context, v rules.IPVersion) (*rules.RuleSet, error)
	Open(ctx context.Context, v rules.IPVersion, n int) (*rules.Mutation, error)
	Close(ctx context.Context, v rules.IPVersion, n int) (*rules.Mutation, error)
}

// Method is a request method known to the router.
type Method int

const (
	MethodUnknown Method = iota
	MethodGet
	MethodHead
	MethodPut
	MethodPost
	MethodDelete
)

var methodNames = map[string]Method{
	"GET":    MethodGet,
	"HEAD":   MethodHead,
	"PUT":    MethodPut,
	"POST":   MethodPost,
	"DELETE": MethodDelete,
}

// ParseMethod returns the Method for a request method token. Tokens are
// case-sensitive.
func ParseMethod(s string) Method {
	return methodNames[s]
}

func (m Method) String() string {
	for name, v := range methodNames {
		if v == m {
			return name
		}
	}
	return "UNKNOWN"
}

type handlerFunc func(ctx context.Context, req *wire.Request) (*wire.Response, error)

// Router validates request paths and dispatches by method. It keeps no state
// between requests apart from the mutation lock.
type Router struct {
	cfg      Config
	store    Store
	logger   *slog.Logger
	handlers map[Method]handlerFunc
	now      func() time.Time

	// mu serializes the fetch-then-replace sequence of PUT requests.
	mu sync.Mutex
}

// New creates a Router. Config defaults are applied automatically.
func New(cfg Config, store Store, logger *slog.Logger) *Router {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		cfg:    cfg,
		store:  store,
		logger: logger.With("component", "router"),
		now:    time.Now,
	}
	r.handlers = map[Method]handlerFunc{
		MethodGet:    r.handleGet,
		MethodHead:   r.handleHead,
		MethodPut:    r.handlePut,
		MethodPost:   r.handlePost,
		MethodDelete: r.handleDelete,
	}
	return r
}

// Handle routes req and always returns a response. Failures are turned into
// problem-details responses here and nowhere else.
func (r *Router) Handle(ctx context.Context, req *wire.Request) *wire.Response {
	resp, err := r.route(ctx, req)
	if err == nil {
		return resp
	}

	var he *HTTPError
	if errors.As(err, &he) {
		if he.Err != nil {
			r.logger.Warn("request failed",
				"method", req.Method,
				"path", req.Path,
				"status", he.Status,
				"error", he.Err,
			)
		} else {
			r.logger.Debug("request rejected",
				"method", req.Method,
				"path", req.Path,
				"status", he.Status,
				"detail", he.Detail,
			)
		}
		return wire.NewProblemResponse(he.Status, he.Instance, he.Detail, r.now())
	}

	r.logger.Error("request failed", "method", req.Method, "path", req.Path, "error", err)
	return wire.NewProblemResponse(500, req.Path, "Internal server error", r.now())
}

func (r *Router) route(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	if err := r.validatePath(req); err != nil {
		return nil, err
	}
	h, ok := r.handlers[ParseMethod(req.Method)]
	if !ok {
		h = r.handleUnsupported
	}
	return h(ctx, req)
}

func (r *Router) handlePost(_ context.Context, req *wire.Request) (*wire.Response, error) {
	return nil, badRequest(req.Path, "Adding rules is not supported")
}

func (r *Router) handleDelete(_ context.Context, req *wire.Request) (*wire.Response, error) {
	return nil, badRequest(req.Path, "Deleting rules is not supported")
}

func (r *Router) handleUnsupported(_ context.Context, req *wire.Request) (*wire.Response, error) {
	return nil, badRequest(req.Path, fmt.Sprintf("HTTP method '%s' not supported", req.Method))
}
