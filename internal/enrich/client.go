package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"compositesvc/pkg/metrics"
)

var (
	// ErrNotFound means the lookup succeeded but no such user exists. The
	// record may still appear shortly after event creation, so callers retry
	// this up to a bound.
	ErrNotFound = errors.New("user not found")
	// ErrUnavailable covers every transient lookup failure: transport errors,
	// timeouts and unexpected statuses.
	ErrUnavailable = errors.New("user service unavailable")
)

// Profile is the enrichment result for one user. Constructed per message,
// never cached.
type Profile struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
}

// Client looks up user profiles on the external user service.
type Client struct {
	baseURL     string
	internalUID string
	httpClient  *http.Client
}

func NewClient(baseURL, internalUID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if internalUID == "" {
		internalUID = "system"
	}
	return &Client{
		baseURL:     baseURL,
		internalUID: internalUID,
		httpClient: &http.Client{
			Timeout: timeout, // keep a stalled lookup from wedging the worker
		},
	}
}

// Lookup fetches a user profile by id. The internal identity header marks the
// call as service-to-service so the user service skips end-user auth.
func (c *Client) Lookup(ctx context.Context, userID int) (*Profile, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/users/%d", c.baseURL, userID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("x-firebase-uid", c.internalUID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordEnrichmentLatency("unavailable", time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var profile Profile
		if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
			metrics.RecordEnrichmentLatency("unavailable", time.Since(start))
			return nil, fmt.Errorf("%w: decoding profile: %v", ErrUnavailable, err)
		}
		metrics.RecordEnrichmentLatency("ok", time.Since(start))
		return &profile, nil
	case resp.StatusCode == http.StatusNotFound:
		metrics.RecordEnrichmentLatency("not_found", time.Since(start))
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	default:
		metrics.RecordEnrichmentLatency("unavailable", time.Since(start))
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}
}
