package router

import (
	"context"
	"strconv"

	"github.com/plexsphere/ipgate/internal/rules"
	"github.com/plexsphere/ipgate/internal/wire"
)

// handlePut serves PUT /<version>/<collection>/<ipv4|ipv6>/<n>/<open|close>.
func (r *Router) handlePut(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	seg := req.PathSegments
	if len(seg) != maxSegments {
		return nil, badRequest(req.Path, "URI path is invalid for open/close")
	}
	op, err := rules.ParseOperation(seg[4])
	if err != nil {
		return nil, badRequest(req.Path, "Invalid operation. Valid operations: open close")
	}

	v, err := rules.VersionFromSegment(seg[2])
	if err != nil {
		return nil, &HTTPError{Status: 404, Detail: "Invalid rule number", Instance: req.Path, Err: err}
	}
	n, err := strconv.Atoi(seg[3])
	if err != nil {
		return nil, &HTTPError{Status: 404, Detail: "Invalid rule number", Instance: req.Path, Err: err}
	}

	if err := r.mutate(ctx, v, n, op); err != nil {
		return nil, &HTTPError{Status: 404, Detail: "Invalid rule number", Instance: req.Path, Err: err}
	}

	resp := wire.NewResponse(200, r.now())
	resp.SetBody([]byte{})
	return resp, nil
}

// mutate holds the router lock across the store's fetch and replace so that
// concurrent PUTs never act on a rule number read by another request.
func (r *Router) mutate(ctx context.Context, v rules.IPVersion, n int, op rules.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	switch op {
	case rules.OpOpen:
		_, err = r.store.Open(ctx, v, n)
	case rules.OpClose:
		_, err = r.store.Close(ctx, v, n)
	}
	return err
}
