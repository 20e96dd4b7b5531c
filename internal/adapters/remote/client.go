// Package remote is the client for the draft persistence service. Every call
// is scoped to the evaluator identified by the session credential.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/internal/domain/rubric"
	"github.com/okian/scoutnotes/pkg/metrics"
)

// HeaderEvaluatorID carries the owner when a trusted gateway authenticates.
const HeaderEvaluatorID = "X-Evaluator-ID"

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// Client talks HTTP/JSON to the draft persistence service.
type Client struct {
	base        *url.URL
	http        *http.Client
	token       string
	evaluatorID string
	timeout     time.Duration
}

// New returns a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}
	c := &Client{base: u, http: &http.Client{}, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type upsertResponse struct {
	UpdatedAt time.Time `json:"updated_at"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// List returns the evaluator's draft summaries, newest first.
func (c *Client) List(ctx context.Context, f draft.ListFilter) ([]draft.Summary, error) {
	q := url.Values{}
	if f.Sport != "" {
		q.Set("sport", f.Sport)
	}
	if f.FilmSubmissionReference != "" {
		q.Set("film_submission_reference", f.FilmSubmissionReference)
	}
	if f.Mode != "" {
		q.Set("mode", string(f.Mode))
	}
	var out []draft.Summary
	if err := c.do(ctx, "list", http.MethodGet, "/v1/drafts", q, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []draft.Summary{}
	}
	return out, nil
}

// FetchByKey returns the stored record or ErrNotFound.
func (c *Client) FetchByKey(ctx context.Context, key string) (draft.Record, error) {
	var rec draft.Record
	err := c.do(ctx, "fetch", http.MethodGet, "/v1/drafts/"+url.PathEscape(key), nil, nil, &rec)
	return rec, err
}

// Upsert replaces the whole record and returns the store's update time.
func (c *Client) Upsert(ctx context.Context, in draft.UpsertInput) (time.Time, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return time.Time{}, fmt.Errorf("encode draft: %w", err)
	}
	var resp upsertResponse
	if err := c.do(ctx, "upsert", http.MethodPut, "/v1/drafts/"+url.PathEscape(in.Key), nil, body, &resp); err != nil {
		return time.Time{}, err
	}
	return resp.UpdatedAt, nil
}

// Remove deletes the record. Removing an absent key succeeds.
func (c *Client) Remove(ctx context.Context, key string) error {
	err := c.do(ctx, "remove", http.MethodDelete, "/v1/drafts/"+url.PathEscape(key), nil, nil, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ActiveForm returns the active rubric form for sport. A sport with no active
// form yields an error wrapping rubric.ErrNotConfigured.
func (c *Client) ActiveForm(ctx context.Context, sport string) (rubric.Form, error) {
	var form rubric.Form
	err := c.do(ctx, "rubric", http.MethodGet, "/v1/rubrics/"+url.PathEscape(sport), nil, nil, &form)
	if errors.Is(err, ErrNotFound) {
		return rubric.Form{}, fmt.Errorf("%w: %s: %w", rubric.ErrNotConfigured, sport, err)
	}
	if err != nil {
		return rubric.Form{}, err
	}
	if err := form.Validate(); err != nil {
		return rubric.Form{}, err
	}
	return form, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body []byte, out any) error {
	start := time.Now()
	outcome := metrics.OutcomeOK
	defer func() {
		metrics.RecordRemoteSync(op, outcome)
		metrics.RecordRemoteSyncLatency(op, float64(time.Since(start).Milliseconds()))
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		outcome = metrics.OutcomeError
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.evaluatorID != "" {
		req.Header.Set(HeaderEvaluatorID, c.evaluatorID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = metrics.OutcomeError
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		if resp.StatusCode != http.StatusNotFound {
			outcome = metrics.OutcomeError
		}
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		outcome = metrics.OutcomeError
		return fmt.Errorf("%w: decode %s response: %w", ErrUnavailable, op, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Message != "" {
		msg = er.Code + ": " + er.Message
	}

	var kind error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		kind = ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		kind = ErrUnavailable
	default:
		kind = ErrRejected
	}
	return fmt.Errorf("%w: status %d: %s", kind, resp.StatusCode, msg)
}
