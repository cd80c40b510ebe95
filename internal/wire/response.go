package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// DateLayout is the format of the Date response header. The zone is always
// rendered as the literal "UTC".
const DateLayout = "Mon, 02 Jan 2006 15:04:05 UTC"

// ContentTypeJSON is the Content-Type of every response.
const ContentTypeJSON = "application/json; charset=utf-8"

// Response is an outbound result. Header keys are case-sensitive and are
// serialized in sorted order.
type Response struct {
	StatusCode int
	Header     map[string]string

	// Body is written verbatim after the header block. A nil Body writes
	// nothing, which is how HEAD responses are produced.
	Body []byte
}

// NewResponse returns a response carrying the default header set.
func NewResponse(status int, now time.Time) *Response {
	return &Response{
		StatusCode: status,
		Header: map[string]string{
			"Cache-Control":  "no-cache",
			"Content-Type":   ContentTypeJSON,
			"Content-Length": "0",
			"Date":           now.UTC().Format(DateLayout),
		},
	}
}

// SetBody sets the body and recomputes Content-Length.
func (r *Response) SetBody(body []byte) {
	r.Body = body
	r.SetContentLength(len(body))
}

// SetContentLength sets Content-Length without attaching a body.
func (r *Response) SetContentLength(n int) {
	r.Header["Content-Length"] = strconv.Itoa(n)
}

// Encode serializes the status line, the sorted header lines, a blank line and
// the body.
func (r *Response) Encode() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", r.StatusCode, StatusText(r.StatusCode))

	keys := make([]string, 0, len(r.Header))
	for k := range r.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, r.Header[k])
	}
	b.WriteString("\r\n")

	if r.Body != nil {
		b.Write(r.Body)
	}
	return b.Bytes()
}

// StatusText returns the reason phrase for the supported status codes.
// Unknown codes map to "Internal Server Error".
func StatusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	case 503:
		return "Service Unavailable"
	default:
		return "Internal Server Error"
	}
}

// Problem is an RFC 7807 style error body.
type Problem struct {
	Status   int    `json:"status"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Instance string `json:"instance"`
}

// NewProblemResponse builds an error response whose body is a Problem followed
// by "\r\n". Title is the standard reason text for status.
func NewProblemResponse(status int, instance, detail string, now time.Time) *Response {
	resp := NewResponse(status, now)
	body, _ := json.Marshal(Problem{
		Status:   status,
		Title:    StatusText(status),
		Detail:   detail,
		Instance: instance,
	})
	resp.SetBody(append(body, '\r', '\n'))
	return resp
}
