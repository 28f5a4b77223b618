// Package netx holds the small HTTP plumbing shared by the bundler and index
// clients: request execution and status-code to sentinel error mapping.
package netx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/helix/internal/common"
)

// maxErrorBody caps how much of a failed response is copied into the error.
const maxErrorBody = 512

// MapStatus converts a non-2xx HTTP status into one of the common sentinels.
//
//	5xx, 429            -> ErrNetwork (retryable)
//	402                 -> ErrQuota
//	400, 413, 422       -> ErrValidation
//	401, 403            -> ErrUnauthorized
//	404                 -> ErrNotFound
//	410                 -> ErrShareExpired
//
// Anything else is returned as a plain error carrying the status.
func MapStatus(code int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	msg := string(bytes.TrimSpace(body))

	var sentinel error
	switch {
	case code >= 500, code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		sentinel = common.ErrNetwork
	case code == http.StatusPaymentRequired:
		sentinel = common.ErrQuota
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity, code == http.StatusRequestEntityTooLarge:
		sentinel = common.ErrValidation
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		sentinel = common.ErrUnauthorized
	case code == http.StatusNotFound:
		sentinel = common.ErrNotFound
	case code == http.StatusGone:
		sentinel = common.ErrShareExpired
	default:
		return fmt.Errorf("unexpected status %d: %s", code, msg)
	}
	return fmt.Errorf("%w: status %d: %s", sentinel, code, msg)
}

// Do executes req and returns the response body and status. Transport
// failures are wrapped in common.ErrNetwork and non-2xx statuses go through
// MapStatus.
func Do(client *http.Client, req *http.Request) ([]byte, int, error) {
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, 0, fmt.Errorf("%w: %w", common.ErrNetwork, ctxErr)
		}
		return nil, 0, fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read body: %w", common.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, resp.StatusCode, MapStatus(resp.StatusCode, body)
	}
	return body, resp.StatusCode, nil
}

// NewJSONRequest builds a request whose body is v encoded as JSON. A nil v
// sends no body.
func NewJSONRequest(ctx context.Context, method, url string, v any) (*http.Request, error) {
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if v != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// NewOctetRequest builds a request carrying raw bytes.
func NewOctetRequest(ctx context.Context, method, url string, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	return req, nil
}
