package streamer

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const maxFrameSize = 1024 * 1024

// HTTPTransport streams frames from the producer's /chat_stream endpoint.
// Frames arrive as newline-delimited JSON; SSE framing ("data: " prefixes,
// comment lines, blank separators) is tolerated because some producers
// serve the same stream as text/event-stream.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		// Streaming responses stay open for the whole answer; only the dial
		// phase gets a timeout.
		client = &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		}
	}
	return &HTTPTransport{baseURL: baseURL, client: client}
}

func (t *HTTPTransport) Open(ctx context.Context, req OpenRequest) (FrameReader, error) {
	u, err := url.Parse(t.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u = u.JoinPath("chat_stream")
	q := u.Query()
	q.Set("message", req.Message)
	if req.CheckpointID != "" {
		q.Set("checkpoint_id", req.CheckpointID)
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build stream request")
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "open chat stream")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, errors.Errorf("open chat stream: unexpected status %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), maxFrameSize)
	return &lineFrameReader{body: resp.Body, scanner: sc}, nil
}

type lineFrameReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (r *lineFrameReader) Next() ([]byte, error) {
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 || line[0] == ':' {
			continue
		}
		// The scanner reuses its buffer on the next Scan.
		return bytes.Clone(line), nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read stream")
	}
	return nil, io.EOF
}

func (r *lineFrameReader) Close() error {
	return r.body.Close()
}
