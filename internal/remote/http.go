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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"example.com/activitysync/internal/domain"
	"example.com/activitysync/internal/query"
)

var tracer = otel.Tracer("example.com/activitysync/internal/remote")

// maxErrorBody bounds how much of an error response is read for classification.
const maxErrorBody = 64 << 10

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	Token() string
}

// HTTPClient talks to the activities REST API.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	tokens  TokenSource
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithTokenSource attaches bearer tokens from source.
func WithTokenSource(source TokenSource) HTTPOption {
	return func(c *HTTPClient) {
		c.tokens = source
	}
}

// NewHTTPClient constructs an HTTPClient rooted at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches one page of activities.
func (c *HTTPClient) List(ctx context.Context, params query.Params) (Page, error) {
	var views []ActivityView
	header, err := c.do(ctx, "ListActivities", http.MethodGet, "/activities?"+params.Encode(), nil, &views)
	if err != nil {
		return Page{}, err
	}

	page := Page{Activities: make([]domain.Activity, 0, len(views))}
	for _, v := range views {
		a, err := v.ToDomain()
		if err != nil {
			return Page{}, Transport(err)
		}
		page.Activities = append(page.Activities, a)
	}

	if raw := header.Get(PaginationHeader); raw != "" {
		var pv PaginationView
		if err := json.Unmarshal([]byte(raw), &pv); err != nil {
			return Page{}, Transport(fmt.Errorf("decode pagination header: %w", err))
		}
		page.Pagination = pv.ToDomain()
	}
	return page, nil
}

// Get fetches a single activity.
func (c *HTTPClient) Get(ctx context.Context, id string) (domain.Activity, error) {
	var view ActivityView
	if _, err := c.do(ctx, "GetActivity", http.MethodGet, "/activities/"+url.PathEscape(id), nil, &view); err != nil {
		return domain.Activity{}, err
	}
	a, err := view.ToDomain()
	if err != nil {
		return domain.Activity{}, Transport(err)
	}
	return a, nil
}

// Create posts a draft carrying its client-generated ID.
func (c *HTTPClient) Create(ctx context.Context, draft domain.ActivityDraft) error {
	_, err := c.do(ctx, "CreateActivity", http.MethodPost, "/activities", NewActivityForm(draft), nil)
	return err
}

// Update sends the present fields of patch.
func (c *HTTPClient) Update(ctx context.Context, patch domain.ActivityPatch) error {
	_, err := c.do(ctx, "UpdateActivity", http.MethodPut, "/activities/"+url.PathEscape(patch.ID), NewActivityPatchForm(patch), nil)
	return err
}

// Delete removes an activity.
func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, "DeleteActivity", http.MethodDelete, "/activities/"+url.PathEscape(id), nil, nil)
	return err
}

// Attend toggles attendance, or cancellation for the host.
func (c *HTTPClient) Attend(ctx context.Context, id string) error {
	_, err := c.do(ctx, "AttendActivity", http.MethodPost, "/activities/"+url.PathEscape(id)+"/attend", struct{}{}, nil)
	return err
}

// UpdateFollowing toggles whether the caller follows username.
func (c *HTTPClient) UpdateFollowing(ctx context.Context, username string) error {
	_, err := c.do(ctx, "UpdateFollowing", http.MethodPost, "/follow/"+url.PathEscape(username), struct{}{}, nil)
	return err
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, body, out any) (http.Header, error) {
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("http.path", path))

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, Transport(err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, Transport(err)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, Transport(err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		failure := Classify(resp.StatusCode, raw)
		span.SetStatus(codes.Error, failure.Error())
		return nil, failure
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return nil, Transport(fmt.Errorf("decode %s response: %w", op, err))
		}
	}
	return resp.Header, nil
}
