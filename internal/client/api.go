// Package client implements the search pipeline: claim a Field from
// the coordination service, scan it with the digit-scan kernel, submit
// the result, and repeat — with retry/backoff and optional
// cross-client result validation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/wasabipesto/nice/internal/model"
	"github.com/wasabipesto/nice/internal/resilience"
)

// apiClient wraps the coordination service's HTTP surface with
// exponential retry/backoff: 1s up to 512s, ten attempts, never
// retrying a 4xx other than 408 and 429.
type apiClient struct {
	base       string
	httpClient *http.Client
	retryCfg   resilience.RetryConfig
}

func newAPIClient(apiBase string, maxRetries int) *apiClient {
	if maxRetries < 1 {
		maxRetries = 10
	}
	return &apiClient{
		base: apiBase,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryCfg: resilience.RetryConfig{
			MaxAttempts:    maxRetries,
			InitialBackoff: time.Second,
			MaxBackoff:     512 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.25,
			ShouldRetry:    shouldRetryAPICall,
			OnRetry:        resilience.RetryLogger("coordination-service", "api-call"),
		},
	}
}

// shouldRetryAPICall retries transient network errors and the
// 408/429/5xx statuses resilience.IsTransientHTTPStatus lists, never
// any other 4xx: a malformed request or stale claim won't succeed no
// matter how many times it's resent.
func shouldRetryAPICall(err error) bool {
	return resilience.IsTransient(err)
}

// apiStatusError carries an HTTP status code through the retry layer
// so shouldRetryAPICall (via resilience.IsTransient) can tell a
// permanent 4xx from a retryable 408/429/5xx.
func newAPIStatusError(method, path string, status int, body string) error {
	err := eris.Errorf("client: %s %s returned %d: %s", method, path, status, body)
	if resilience.IsTransientHTTPStatus(status) {
		return resilience.NewTransientError(err, status)
	}
	return err
}

// claim calls POST /claim/{mode}. A nil response with no error means
// the service had nothing to hand out (204 No Content).
func (c *apiClient) claim(ctx context.Context, mode model.SearchMode) (*model.ClaimResponse, error) {
	return resilience.DoVal(ctx, c.retryCfg, func(ctx context.Context) (*model.ClaimResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/claim/"+string(mode), nil)
		if err != nil {
			return nil, eris.Wrap(err, "client: build claim request")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "client: claim request"), 0)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNoContent {
			return nil, nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, newAPIStatusError(http.MethodPost, "/claim/"+string(mode), resp.StatusCode, readBodySnippet(resp.Body))
		}

		var out model.ClaimResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, eris.Wrap(err, "client: decode claim response")
		}
		return &out, nil
	})
}

// submit calls POST /submit with the completed search result.
func (c *apiClient) submit(ctx context.Context, req model.SubmissionRequest) error {
	_, err := resilience.DoVal(ctx, c.retryCfg, func(ctx context.Context) (struct{}, error) {
		payload, err := json.Marshal(req)
		if err != nil {
			return struct{}{}, eris.Wrap(err, "client: encode submission")
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/submit", bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, eris.Wrap(err, "client: build submit request")
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return struct{}{}, resilience.NewTransientError(eris.Wrap(err, "client: submit request"), 0)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return struct{}{}, newAPIStatusError(http.MethodPost, "/submit", resp.StatusCode, readBodySnippet(resp.Body))
		}
		return struct{}{}, nil
	})
	return err
}

// getSubmission calls GET /submission?field_id=N, used by validation
// mode to compare a field's existing canon against the client's own
// result before submitting.
func (c *apiClient) getSubmission(ctx context.Context, fieldID int64) (*model.Submission, error) {
	return resilience.DoVal(ctx, c.retryCfg, func(ctx context.Context) (*model.Submission, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/submission", nil)
		if err != nil {
			return nil, eris.Wrap(err, "client: build submission request")
		}
		q := req.URL.Query()
		q.Set("field_id", strconv.FormatInt(fieldID, 10))
		req.URL.RawQuery = q.Encode()

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "client: submission request"), 0)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, newAPIStatusError(http.MethodGet, "/submission", resp.StatusCode, readBodySnippet(resp.Body))
		}

		var out model.Submission
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, eris.Wrap(err, "client: decode submission response")
		}
		return &out, nil
	})
}

// getValidationField calls GET /claim/validate, used for the one-time
// kernel self-check at startup: a random previously verified field
// plus its canonical result, recomputed locally and compared.
func (c *apiClient) getValidationField(ctx context.Context) (*model.ValidationData, error) {
	return resilience.DoVal(ctx, c.retryCfg, func(ctx context.Context) (*model.ValidationData, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/claim/validate", nil)
		if err != nil {
			return nil, eris.Wrap(err, "client: build validation request")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "client: validation request"), 0)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, newAPIStatusError(http.MethodGet, "/claim/validate", resp.StatusCode, readBodySnippet(resp.Body))
		}

		var out model.ValidationData
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, eris.Wrap(err, "client: decode validation response")
		}
		return &out, nil
	})
}

func readBodySnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(b)
}
