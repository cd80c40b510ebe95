package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/plexsphere/ipgate/internal/router"
	"github.com/plexsphere/ipgate/internal/wire"
)

// clientTimeout bounds a single CLI request.
const clientTimeout = 15 * time.Second

// rulesURL returns the URL of the rules resource below the collection.
func rulesURL(parts ...string) string {
	path := "/" + router.DefaultAPIVersion + "/" + router.DefaultCollection
	for _, p := range parts {
		path += "/" + p
	}
	return "http://" + addr + path
}

// apiRequest performs a request against the running service and returns the
// body of a 200 response. Problem responses are turned into errors.
func apiRequest(cmd *cobra.Command, method, url string) ([]byte, error) {
	_, body, err := apiDo(cmd, method, url)
	return body, err
}

func apiDo(cmd *cobra.Command, method, url string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), method, url, nil)
	if err != nil {
		return nil, nil, err
	}
	client := &http.Client{Timeout: clientTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("service not reachable at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var p wire.Problem
		if err := json.Unmarshal(bytes.TrimSpace(body), &p); err == nil && p.Detail != "" {
			return nil, nil, fmt.Errorf("%d %s: %s", p.Status, p.Title, p.Detail)
		}
		return nil, nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp, body, nil
}

// printJSON writes body indented, or verbatim if it is not JSON.
func printJSON(w io.Writer, body []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(body), "", "  "); err != nil {
		_, err = w.Write(body)
		return err
	}
	out.WriteString("\n")
	_, err := out.WriteTo(w)
	return err
}

// validVersionArg reports whether s names an IP version path segment.
func validVersionArg(s string) bool {
	return strings.EqualFold(s, "ipv4") || strings.EqualFold(s, "ipv6")
}
