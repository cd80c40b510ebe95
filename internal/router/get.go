package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/plexsphere/ipgate/internal/rules"
	"github.com/plexsphere/ipgate/internal/wire"
)

// versionRules is the per-version object of a GET body.
type versionRules struct {
	Datetime string       `json:"datetime"`
	Rules    []rules.Rule `json:"rules"`
}

func (r *Router) handleGet(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	body, err := r.content(ctx, req)
	if err != nil {
		return nil, err
	}
	resp := wire.NewResponse(200, r.now())
	resp.SetBody(body)
	return resp, nil
}

// handleHead does the same work as GET but only reports the body length.
func (r *Router) handleHead(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	body, err := r.content(ctx, req)
	if err != nil {
		return nil, err
	}
	resp := wire.NewResponse(200, r.now())
	resp.SetContentLength(len(body))
	return resp, nil
}

// content fetches the requested versions and encodes them as
// {"ipv4":{"datetime":...,"rules":[...]},"ipv6":{...}}.
func (r *Router) content(ctx context.Context, req *wire.Request) ([]byte, error) {
	versions := rules.Versions
	if len(req.PathSegments) > 2 {
		v, err := rules.ParseIPVersion(req.PathSegments[2])
		if err != nil {
			return nil, notFound(req.Path, fmt.Sprintf("Resource path %s not found", req.Path))
		}
		versions = []rules.IPVersion{v}
	}

	sets, err := r.fetch(ctx, versions)
	if err != nil {
		return nil, &HTTPError{Status: 500, Detail: "Failed to read firewall rules", Instance: req.Path, Err: err}
	}

	host, ok := req.Host()
	if !ok || host == "" {
		host = r.cfg.DefaultHost
	}

	out := make(map[string]versionRules, len(sets))
	for _, rs := range sets {
		r.attachLinks(rs, host)
		selected, err := selectRules(rs, req)
		if err != nil {
			return nil, err
		}
		out[rs.Version.String()] = versionRules{Datetime: rs.Datetime(), Rules: selected}
	}
	return json.Marshal(out)
}

// fetch reads every version concurrently. Results keep the order of versions.
func (r *Router) fetch(ctx context.Context, versions []rules.IPVersion) ([]*rules.RuleSet, error) {
	sets := make([]*rules.RuleSet, len(versions))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range versions {
		g.Go(func() error {
			rs, err := r.store.Fetch(gctx, v)
			if err != nil {
				return err
			}
			sets[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}

// attachLinks sets xopen/xclose on every rule that carries a comment.
func (r *Router) attachLinks(rs *rules.RuleSet, host string) {
	for i := range rs.Rules {
		if _, ok := rs.Comment(i); !ok {
			continue
		}
		base := fmt.Sprintf("%s://%s/%s/%s/%s/%d/",
			r.cfg.Scheme, host, r.cfg.APIVersion, r.cfg.Collection, rs.Version, i)
		rs.Rules[i].OpenLink = base + string(rules.OpOpen)
		rs.Rules[i].CloseLink = base + string(rules.OpClose)
	}
}

// selectRules applies the rule number segment or the single query filter.
func selectRules(rs *rules.RuleSet, req *wire.Request) ([]rules.Rule, error) {
	if len(req.PathSegments) >= 4 {
		n, err := strconv.Atoi(req.PathSegments[3])
		if err != nil {
			return nil, notFound(req.Path, "Invalid rule number")
		}
		rule, ok := rs.Rule(n)
		if !ok {
			return nil, notFound(req.Path, "Invalid rule number")
		}
		return []rules.Rule{rule}, nil
	}

	if !req.HasFilter {
		return rs.Rules, nil
	}

	switch req.FilterName {
	case "action":
		nums, ok := rs.ByAction(req.FilterArg)
		if !ok {
			return nil, badRequest(req.Path, "Invalid filter action. Valid actions: accept drop")
		}
		return rs.Select(nums), nil

	case "protocol":
		nums, ok := rs.ByProtocol[req.FilterArg]
		if !ok {
			return nil, badRequest(req.Path, "Invalid filter protocol. Valid protocols: icmp tcp udp")
		}
		return rs.Select(nums), nil

	case "comment":
		n, ok := rs.ByComment[req.FilterArg]
		if !req.HasFilterArg || !ok {
			return nil, badRequest(req.Path, "Comment not found.")
		}
		return rs.Select([]int{n}), nil

	case "port":
		if !req.HasFilterArg {
			return nil, badRequest(req.Path, "Port number missing")
		}
		port, err := strconv.Atoi(req.FilterArg)
		if err != nil {
			return nil, badRequest(req.Path, "Invalid port number")
		}
		n, ok := rs.ByPort[port]
		if !ok {
			return nil, badRequest(req.Path, "Port number not found.")
		}
		return rs.Select([]int{n}), nil

	default:
		return nil, badRequest(req.Path, "Invalid filter name. Valid names: action comment port protocol")
	}
}
