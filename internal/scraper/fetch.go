package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/skalra/auros/internal/model"
	"github.com/skalra/auros/internal/retry"
)

// fetchJSON issues one ATS API request with retry and decodes the JSON body
// into out. HTTP-level and transport-level failures are retried; exhausted
// retries surface as a ScrapeError so the strategy fallback can engage.
func (s *Scraper) fetchJSON(ctx context.Context, method, rawURL string, payload map[string]any, out any) error {
	op := func(ctx context.Context) (struct{}, error) {
		reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()

		req, err := buildRequest(reqCtx, method, rawURL, payload)
		if err != nil {
			return struct{}{}, err
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return struct{}{}, &model.HTTPError{
				StatusCode: resp.StatusCode,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Err:        fmt.Errorf("%s %s", method, rawURL),
			}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, fmt.Errorf("decode %s: %w", rawURL, err)
		}
		return struct{}{}, nil
	}

	_, err := retry.Do(ctx, retry.DefaultAttempts, retry.DefaultBaseDelay, isFetchFailure, op)
	if err != nil {
		return model.NewScrapeError("fetch", err)
	}
	return nil
}

// isFetchFailure classifies errors for API retry: any HTTP status error or
// transient transport failure qualifies.
func isFetchFailure(err error) bool {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return true
	}
	return model.IsTransient(err)
}

func buildRequest(ctx context.Context, method, rawURL string, payload map[string]any) (*http.Request, error) {
	if method == http.MethodPost {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		q := u.Query()
		for k, v := range payload {
			q.Set(k, queryValue(v))
		}
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// queryValue flattens a payload value for use as a query parameter.
// Non-scalar values are JSON-encoded.
func queryValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
