package httpqueue

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// NetworkRequest is the fully-resolved, wire-ready view of a Request handed
// to an HTTPStack: method, URL and headers resolved, body read into memory.
// It carries no pipeline state (cache, retry, tag) — those stay in Request.
type NetworkRequest struct {
	Method  Method
	URL     string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

// NetworkResponse is the fully-buffered view of an HTTP response, as
// returned by HTTPStack.Execute. The body is read to completion before this
// struct is constructed, matching spec.md §6's "byte slice, not a stream".
type NetworkResponse struct {
	StatusCode int
	Headers    HeaderList
	Body       []byte
	// NetworkTimeMs is the wall-clock duration of the underlying round trip,
	// in milliseconds, surfaced for event listeners and metrics.
	NetworkTimeMs int64
}

// HTTPStack performs one HTTP round trip. Implementations must respect
// ctx cancellation/deadlines and must not retry internally; retrying is the
// network dispatcher's job (spec.md §4.4, §6).
type HTTPStack interface {
	Execute(ctx context.Context, req *NetworkRequest) (*NetworkResponse, error)
}

// httpClientStack is the default HTTPStack, backed by a net/http.Client.
type httpClientStack struct {
	client *http.Client
}

// NewHTTPClientStack adapts an *http.Client into an HTTPStack. If client is
// nil, http.DefaultClient is used. The caller remains responsible for the
// client's Transport (proxying, TLS, connection pooling); this stack only
// shapes the request/response at the pipeline boundary.
func NewHTTPClientStack(client *http.Client) HTTPStack {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpClientStack{client: client}
}

func (s *httpClientStack) Execute(ctx context.Context, nreq *NetworkRequest) (*NetworkResponse, error) {
	var body io.Reader
	if len(nreq.Body) > 0 {
		body = bytes.NewReader(nreq.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, nreq.Method.String(), nreq.URL, body)
	if err != nil {
		return nil, NewNetworkError(err)
	}
	for k, v := range nreq.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewTimeoutError(err)
		}
		return nil, NewNoConnectionError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError(err)
	}

	var headers HeaderList
	for name, values := range resp.Header {
		for _, v := range values {
			headers = append(headers, Header{Name: name, Value: v})
		}
	}

	return &NetworkResponse{
		StatusCode:    resp.StatusCode,
		Headers:       headers,
		Body:          respBody,
		NetworkTimeMs: elapsed,
	}, nil
}
