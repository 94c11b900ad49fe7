package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/ports"
)

// ErrUnavailable means no control API answered at the configured address.
var ErrUnavailable = errors.New("no running cycle at this address")

// Client drives a cycle owned by another process.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ ports.CycleController = (*Client)(nil)

// NewClient creates a client for the API at addr ("host:port" or a URL).
func NewClient(addr string) *Client {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// StartWork calls POST /api/start.
func (c *Client) StartWork(ctx context.Context, req ports.StartWorkRequest) (*domain.CurrentState, error) {
	return c.postState(ctx, "/api/start", StartRequest{
		Label:      req.Label,
		Preset:     req.Preset,
		Deadline:   req.Deadline,
		WorkingDir: req.WorkingDir,
	})
}

// EndIn calls POST /api/end-in.
func (c *Client) EndIn(ctx context.Context, minutes float64) (*domain.CurrentState, error) {
	return c.postState(ctx, "/api/end-in", MinutesRequest{Minutes: &minutes})
}

// EndAt calls POST /api/end-at.
func (c *Client) EndAt(ctx context.Context, t time.Time) (*domain.CurrentState, error) {
	return c.postState(ctx, "/api/end-at", EndAtRequest{At: t.Format(time.RFC3339)})
}

// EndNow calls POST /api/end-now.
func (c *Client) EndNow(ctx context.Context) (*domain.CurrentState, error) {
	return c.postState(ctx, "/api/end-now", nil)
}

// StartLongBreak calls POST /api/long-break.
func (c *Client) StartLongBreak(ctx context.Context, minutes float64) (*domain.CurrentState, error) {
	return c.postState(ctx, "/api/long-break", MinutesRequest{Minutes: &minutes})
}

// Kill calls POST /api/kill.
func (c *Client) Kill(ctx context.Context) (*domain.CurrentState, error) {
	return c.postState(ctx, "/api/kill", nil)
}

// State calls GET /api/state.
func (c *Client) State(ctx context.Context) (*domain.CurrentState, error) {
	var dto StateDTO
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, &dto); err != nil {
		return nil, err
	}
	return dto.CurrentState(), nil
}

// History calls GET /api/history.
func (c *Client) History(ctx context.Context, since time.Time, search string, limit int) ([]*domain.IntervalRecord, error) {
	q := url.Values{}
	q.Set("since", since.Format(time.RFC3339))
	if search != "" {
		q.Set("search", search)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var dtos []*IntervalDTO
	if err := c.do(ctx, http.MethodGet, "/api/history?"+q.Encode(), nil, &dtos); err != nil {
		return nil, err
	}
	records := make([]*domain.IntervalRecord, 0, len(dtos))
	for _, d := range dtos {
		records = append(records, d.Record())
	}
	return records, nil
}

func (c *Client) postState(ctx context.Context, path string, body any) (*domain.CurrentState, error) {
	var dto StateDTO
	if err := c.do(ctx, http.MethodPost, path, body, &dto); err != nil {
		return nil, err
	}
	return dto.CurrentState(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		return decodeError(apiErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError maps an API error back onto the domain sentinels.
func decodeError(e ErrorResponse) error {
	var sentinel error
	switch e.Code {
	case codeInvalidArgument:
		sentinel = domain.ErrInvalidArgument
	case codeConfiguration:
		sentinel = domain.ErrConfiguration
	case codeAlreadyActive:
		sentinel = domain.ErrIntervalAlreadyActive
	case codeNotFound:
		sentinel = domain.ErrNoActiveInterval
	default:
		return errors.New(e.Error)
	}
	return fmt.Errorf("%w (server: %s)", sentinel, e.Error)
}
