package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"tapcanvas/threadgate/pkg/proxy/types"
	"tapcanvas/threadgate/pkg/telemetry/tracing"
)

// DefaultMaxBodyBytes bounds buffered request bodies when no limit is set.
const DefaultMaxBodyBytes = 10 * 1024 * 1024

// threadPath matches the alias segment of /threads/<alias>/...
var threadPath = regexp.MustCompile(`^/threads/([^/?#]+)`)

// hopHeaders are removed in both directions.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// BufferBody reads the whole request body so that it can be replayed.
// GET and HEAD requests and requests without a body return nil. A body
// larger than maxBytes yields a 413 RequestError.
func BufferBody(r *http.Request, maxBytes int64) ([]byte, error) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return nil, nil
	}
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, &RequestError{
			Message: fmt.Sprintf("failed to read request body: %v", err),
			Type:    types.ErrorTypeInvalidRequest,
			Code:    types.CodeInvalidBody,
		}
	}
	if int64(len(body)) > maxBytes {
		return nil, &RequestError{
			Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", maxBytes),
			Type:    types.ErrorTypeRequestTooLarge,
			Code:    types.CodeRequestTooLarge,
		}
	}
	return body, nil
}

// ExtractAlias returns the URL-decoded, trimmed alias of an escaped path
// such as /threads/conv-42/messages. ok is false when the path does not
// address a thread or the segment is empty.
func ExtractAlias(escapedPath string) (alias string, ok bool) {
	m := threadPath.FindStringSubmatch(escapedPath)
	if m == nil {
		return "", false
	}

	decoded, err := url.PathUnescape(m[1])
	if err != nil {
		decoded = m[1]
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", false
	}
	return decoded, true
}

// RewritePath replaces the thread segment of escapedPath with id. The rest
// of the path is left byte for byte.
func RewritePath(escapedPath, id string) string {
	loc := threadPath.FindStringSubmatchIndex(escapedPath)
	if loc == nil {
		return escapedPath
	}
	return escapedPath[:loc[2]] + url.PathEscape(id) + escapedPath[loc[3]:]
}

// buildUpstreamRequest clones in onto base with the given escaped path and
// a replayable body.
func buildUpstreamRequest(ctx context.Context, in *http.Request, base *url.URL, escapedPath string, body []byte) (*http.Request, error) {
	target := strings.TrimSuffix(base.String(), "/") + escapedPath
	if in.URL.RawQuery != "" {
		target += "?" + in.URL.RawQuery
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	out, err := http.NewRequestWithContext(ctx, in.Method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}

	out.Header = in.Header.Clone()
	removeHopHeaders(out.Header)
	// The transport negotiates and decodes compression itself, so JSON
	// bodies arrive in plain text.
	out.Header.Del("Accept-Encoding")
	if body == nil {
		out.Header.Del("Content-Length")
	}

	tracing.Inject(ctx, out.Header)
	return out, nil
}

func removeHopHeaders(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// forward sends one request to the upstream and returns its response
// without following redirects.
func (r *Relay) forward(ctx context.Context, in *http.Request, escapedPath string, body []byte) (*http.Response, error) {
	req, err := buildUpstreamRequest(ctx, in, r.upstream.BaseURL(), escapedPath, body)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, &ForwardError{Cause: err}
	}
	return resp, nil
}
