// Package pipeline wraps every outbound call to the gateway.
//
// A Pipeline owns an explicit middleware chain fixed at construction, so
// independently configured pipelines can coexist. Responses are classified
// into transport, authentication (401), authorization (403) and other status
// failures; 403s are tagged with IsPermissionError and re-raised.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response body is kept on Error
const maxErrorBody = 4 << 10

// Pipeline sends JSON requests to a single gateway base URL
type Pipeline struct {
	baseURL string
	doer    Doer
}

// New creates a pipeline. mws wrap httpClient in order, first outermost.
func New(baseURL string, httpClient *http.Client, mws ...Middleware) *Pipeline {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	var doer Doer = httpClient
	for i := len(mws) - 1; i >= 0; i-- {
		doer = mws[i](doer)
	}

	return &Pipeline{
		baseURL: strings.TrimRight(baseURL, "/"),
		doer:    doer,
	}
}

// BaseURL returns the gateway base URL
func (p *Pipeline) BaseURL() string {
	return p.baseURL
}

// Do sends method path with body JSON-encoded (if non-nil) and decodes a
// 2xx response into out (if non-nil). Failures are returned as *Error.
func (p *Pipeline) Do(ctx context.Context, method, path string, body, out any) error {
	url := p.baseURL + path

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.doer.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(method, url, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func classify(method, url string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	e := &Error{
		Kind:       KindStatus,
		Method:     method,
		URL:        url,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		e.Kind = KindAuthentication
	case http.StatusForbidden:
		e.Kind = KindAuthorization
		e.IsPermissionError = true
	}
	return e
}
