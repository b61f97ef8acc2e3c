package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"tapcanvas/threadgate/pkg/proxy/types"
)

// threadIDField is the JSON key rewritten by PatchThreadID.
const threadIDField = "thread_id"

// PatchThreadID replaces every "thread_id" string equal to internalID with
// alias, at any depth of the JSON document in body. Key order and numbers
// are preserved; the output is compact. When nothing matched, body is
// returned unchanged and changed is false. Malformed JSON yields a
// *PatchError together with the original body.
func PatchThreadID(body []byte, internalID, alias string) (out []byte, changed bool, err error) {
	p := &patcher{
		dec:  json.NewDecoder(bytes.NewReader(body)),
		from: internalID,
		to:   alias,
	}
	p.dec.UseNumber()

	tok, err := p.dec.Token()
	if err != nil {
		return body, false, &PatchError{Cause: err}
	}
	if err := p.value(tok, false); err != nil {
		return body, false, &PatchError{Cause: err}
	}
	if _, err := p.dec.Token(); !errors.Is(err, io.EOF) {
		return body, false, &PatchError{Cause: errors.New("trailing data after JSON value")}
	}

	if !p.changed {
		return body, false, nil
	}
	return p.buf.Bytes(), true, nil
}

// patcher re-encodes a token stream, substituting matching thread ids.
type patcher struct {
	dec      *json.Decoder
	buf      bytes.Buffer
	from, to string
	changed  bool
}

func (p *patcher) value(tok json.Token, isThreadID bool) error {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return p.object()
		case '[':
			return p.array()
		default:
			return fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		if isThreadID && t == p.from {
			t = p.to
			p.changed = true
		}
		return p.writeString(t)
	case json.Number:
		p.buf.WriteString(t.String())
	case bool:
		p.buf.WriteString(strconv.FormatBool(t))
	case nil:
		p.buf.WriteString("null")
	default:
		return fmt.Errorf("unexpected token %T", tok)
	}
	return nil
}

func (p *patcher) object() error {
	p.buf.WriteByte('{')
	for i := 0; p.dec.More(); i++ {
		if i > 0 {
			p.buf.WriteByte(',')
		}

		keyTok, err := p.dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("object key is %T", keyTok)
		}
		if err := p.writeString(key); err != nil {
			return err
		}
		p.buf.WriteByte(':')

		valTok, err := p.dec.Token()
		if err != nil {
			return err
		}
		if err := p.value(valTok, key == threadIDField); err != nil {
			return err
		}
	}
	if _, err := p.dec.Token(); err != nil {
		return err
	}
	p.buf.WriteByte('}')
	return nil
}

func (p *patcher) array() error {
	p.buf.WriteByte('[')
	for i := 0; p.dec.More(); i++ {
		if i > 0 {
			p.buf.WriteByte(',')
		}
		tok, err := p.dec.Token()
		if err != nil {
			return err
		}
		if err := p.value(tok, false); err != nil {
			return err
		}
	}
	if _, err := p.dec.Token(); err != nil {
		return err
	}
	p.buf.WriteByte(']')
	return nil
}

func (p *patcher) writeString(s string) error {
	enc := json.NewEncoder(&p.buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode appends a newline.
	p.buf.Truncate(p.buf.Len() - 1)
	return nil
}

// isEventStream reports whether h describes a server-sent events stream.
func isEventStream(h http.Header) bool {
	return strings.Contains(strings.ToLower(h.Get("Content-Type")), "text/event-stream")
}

// patchable reports whether a response with headers h may be rewritten:
// plain JSON that is neither a stream nor still encoded.
func patchable(h http.Header) bool {
	ct := strings.ToLower(h.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") || strings.Contains(ct, "text/event-stream") {
		return false
	}
	enc := strings.ToLower(strings.TrimSpace(h.Get("Content-Encoding")))
	return enc == "" || enc == "identity"
}

// hasBody reports whether a response to method with status can carry a
// body.
func hasBody(method string, status int) bool {
	if method == http.MethodHead {
		return false
	}
	switch {
	case status >= 100 && status < 200, status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

// copyHeaders copies upstream response headers to the client, without
// hop-by-hop headers.
func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
	removeHopHeaders(dst)
}

// streamBody copies body to w as it arrives. Event streams are flushed
// after every write.
func streamBody(w http.ResponseWriter, body io.Reader, flush bool) error {
	if !flush {
		_, err := io.Copy(w, body)
		return err
	}

	rc := http.NewResponseController(w)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// bufferedResponse keeps a fully read upstream response so that it can be
// delivered after a failed recovery.
type bufferedResponse struct {
	status int
	header http.Header
	body   []byte
}

func bufferResponse(resp *http.Response) (*bufferedResponse, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return &bufferedResponse{
		status: resp.StatusCode,
		header: resp.Header.Clone(),
		body:   body,
	}, err
}

// toResponse turns the buffered copy back into a readable response.
func (b *bufferedResponse) toResponse() *http.Response {
	return &http.Response{
		StatusCode:    b.status,
		Header:        b.header,
		Body:          io.NopCloser(bytes.NewReader(b.body)),
		ContentLength: int64(len(b.body)),
	}
}

// WriteJSONResponse writes data as JSON with the given status.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// WriteErrorResponse writes the error envelope with the status of its type.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	return WriteJSONResponse(w, errResp.Error.HTTPStatusCode(), errResp)
}
