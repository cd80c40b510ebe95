// Package wire implements the minimal HTTP/1.1 request decoder and response
// encoder used by the rules listener. It operates on raw byte buffers and
// supports only what the rules API needs: no chunked bodies, no keep-alive.
package wire

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedRequest is returned when the request line cannot be parsed.
var ErrMalformedRequest = errors.New("wire: malformed request")

var (
	requestLineRe = regexp.MustCompile(`^(\S+)\s(\S+)\s`)
	headerLineRe  = regexp.MustCompile(`^([^:]+):\s?(.*)$`)
)

// Request is one decoded inbound call.
type Request struct {
	// Method is the request method token, e.g. "GET".
	Method string

	// Path is the full request target including any query suffix.
	Path string

	// PathSegments is the non-query part of Path split on '/', with the
	// leading empty segment discarded.
	PathSegments []string

	// Header holds header fields. Duplicate names keep the last value.
	Header map[string]string

	// FilterName is the name of the single query filter, if any.
	FilterName string
	// HasFilter reports whether the path carried a query suffix.
	HasFilter bool

	// FilterArg is the filter value. It is only meaningful when HasFilterArg is set.
	FilterArg    string
	HasFilterArg bool
}

// DecodeRequest parses a raw request buffer. Header lines are expected to end
// in "\r\n"; the final byte of each line is dropped before matching and lines
// that are not "Name: value" are skipped. A request line that does not match
// "METHOD SP PATH SP" yields ErrMalformedRequest.
func DecodeRequest(data []byte) (*Request, error) {
	lines := strings.Split(string(data), "\n")

	m := requestLineRe.FindStringSubmatch(lines[0])
	if m == nil {
		return nil, fmt.Errorf("%w: request line %q", ErrMalformedRequest, truncate(lines[0], 64))
	}

	req := &Request{
		Method: m[1],
		Path:   m[2],
		Header: make(map[string]string),
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		hm := headerLineRe.FindStringSubmatch(line[:len(line)-1])
		if hm == nil {
			continue
		}
		req.Header[hm[1]] = hm[2]
	}

	req.splitPath()
	return req, nil
}

// Host returns the Host header value and whether it was present.
func (r *Request) Host() (string, bool) {
	h, ok := r.Header["Host"]
	return h, ok
}

func (r *Request) splitPath() {
	path, query, hasQuery := strings.Cut(r.Path, "?")

	if hasQuery {
		r.HasFilter = true
		name, arg, _ := strings.Cut(query, "=")
		r.FilterName = name
		// Only the first '=' separated value is used.
		arg, _, _ = strings.Cut(arg, "=")
		if arg != "" {
			r.FilterArg = arg
			r.HasFilterArg = true
		}
	}

	segments := strings.Split(path, "/")
	r.PathSegments = segments[1:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
