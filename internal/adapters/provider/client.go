// Package provider is an HTTP client for the competition results provider.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/okian/fantasy-climbing/pkg/logger"
	"github.com/okian/fantasy-climbing/pkg/metrics"
)

// Default client configuration constants.
const (
	DefaultBaseURL    = "https://ifsc.results.info"
	SessionCookieName = "_verticallife_resultservice_session"

	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxErrorBody     = 512
)

// Source is the read-only provider contract consumed by ingestion.
type Source interface {
	Season(ctx context.Context, year int) (Season, error)
	Event(ctx context.Context, eventID int64) (FullEvent, error)
	Results(ctx context.Context, eventID, dcatID int64) (Results, error)
	Registrations(ctx context.Context, eventID int64) ([]Registration, error)
	WorldRanking(ctx context.Context, cuwrID, year int) ([]RankingEntry, error)
}

// Client talks to the provider API. A session cookie is fetched from the
// site root on first use and refreshed once when a request returns 401.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	log       logger.Logger

	mu      sync.Mutex
	session string
}

var _ Source = (*Client)(nil)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL sets the provider site root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a provider client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: defaultUserAgent,
		http:      &http.Client{Timeout: defaultTimeout},
		log:       logger.Get().Named("provider"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Season fetches the event listing of a season year.
func (c *Client) Season(ctx context.Context, year int) (Season, error) {
	id, err := SeasonID(year)
	if err != nil {
		return Season{}, err
	}
	var out Season
	err = c.get(ctx, "season", "/seasons/"+strconv.Itoa(id), &out)
	return out, err
}

// Event fetches event details including its categories.
func (c *Client) Event(ctx context.Context, eventID int64) (FullEvent, error) {
	var out FullEvent
	err := c.get(ctx, "event", fmt.Sprintf("/events/%d", eventID), &out)
	return out, err
}

// Results fetches the ranking of one event category.
func (c *Client) Results(ctx context.Context, eventID, dcatID int64) (Results, error) {
	var out Results
	err := c.get(ctx, "result", fmt.Sprintf("/events/%d/result/%d", eventID, dcatID), &out)
	return out, err
}

// Registrations fetches the registered athletes of an event.
func (c *Client) Registrations(ctx context.Context, eventID int64) ([]Registration, error) {
	var out []Registration
	err := c.get(ctx, "registrations", fmt.Sprintf("/events/%d/registrations", eventID), &out)
	return out, err
}

// WorldRanking fetches a world ranking list for a season year.
func (c *Client) WorldRanking(ctx context.Context, cuwrID, year int) ([]RankingEntry, error) {
	seasonID, err := SeasonID(year)
	if err != nil {
		return nil, err
	}
	var out []RankingEntry
	err = c.get(ctx, "world_ranking", fmt.Sprintf("/world_ranking/cuwr/%d?season_id=%d", cuwrID, seasonID), &out)
	return out, err
}

func (c *Client) get(ctx context.Context, label, endpoint string, out any) error {
	session, err := c.ensureSession(ctx)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, label, endpoint, session)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		c.log.Info(ctx, "provider session expired, refreshing", logger.String("endpoint", endpoint))
		c.resetSession()
		if session, err = c.ensureSession(ctx); err != nil {
			return err
		}
		if resp, err = c.do(ctx, label, endpoint, session); err != nil {
			return err
		}
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s returned %d: %s", ErrUnexpectedStatus, endpoint, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, label, endpoint, session string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1"+endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", c.baseURL+"/")
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session})

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordProviderRequest(label, "error", latency)
		return nil, fmt.Errorf("get %s: %w", endpoint, err)
	}
	metrics.RecordProviderRequest(label, strconv.Itoa(resp.StatusCode), latency)
	return resp, nil
}

func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != "" {
		return c.session, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	defer drain(resp)
	for _, ck := range resp.Cookies() {
		if ck.Name == SessionCookieName && ck.Value != "" {
			c.session = ck.Value
			return c.session, nil
		}
	}
	return "", ErrNoSession
}

func (c *Client) resetSession() {
	c.mu.Lock()
	c.session = ""
	c.mu.Unlock()
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
