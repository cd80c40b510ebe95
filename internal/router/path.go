package router

import (
	"fmt"

	"github.com/plexsphere/ipgate/internal/rules"
	"github.com/plexsphere/ipgate/internal/wire"
)

const maxSegments = 5

// validatePath checks the resource grammar shared by every method:
//
//	/<version>/<collection>[/<ipv4|ipv6>[/<number>[/<operation>]]]
//
// The operation segment is only checked by PUT.
func (r *Router) validatePath(req *wire.Request) error {
	seg := req.PathSegments

	if len(seg) < 2 {
		return badRequest(req.Path, "URI path is invalid")
	}
	if seg[0] != r.cfg.APIVersion {
		return badRequest(req.Path, "Supported version: "+r.cfg.APIVersion)
	}

	resourceNotFound := notFound(req.Path, fmt.Sprintf("Resource path %s not found", req.Path))
	if seg[1] != r.cfg.Collection {
		return resourceNotFound
	}
	if len(seg) >= 3 {
		if _, err := rules.ParseIPVersion(seg[2]); err != nil {
			return resourceNotFound
		}
	}
	if len(seg) >= 4 && !isDigits(seg[3]) {
		return resourceNotFound
	}
	if len(seg) > maxSegments {
		return badRequest(req.Path, "URI path is invalid")
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
