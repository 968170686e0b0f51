package nemo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nemo-facility/nemo-app-drive/period"
	"github.com/nemo-facility/nemo-app-drive/records"
)

const (
	DefaultBaseURL = "https://nemo.stanford.edu"

	BillingPath      = "/api/billing/billing_data/"
	UsageEventsPath  = "/api/usage_events/"
	ReservationsPath = "/api/reservations/"
	UsersPath        = "/api/users/"
	ToolsPath        = "/api/tools/"
)

// Source is the set of NEMO queries used by the pipelines.
type Source interface {
	Billing(ctx context.Context, start, end time.Time) (*records.Table, error)
	UsageEvents(ctx context.Context) (*records.Table, error)
	Reservations(ctx context.Context) (*records.Table, error)
	Users(ctx context.Context) (*records.Table, error)
	Tools(ctx context.Context) (*records.Table, error)
}

type Client struct {
	BaseURL string
	Token   string

	http    *http.Client
	limiter *rate.Limiter
	log     log.FieldLogger
}

var _ Source = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.http = c
	}
}

// WithRateLimit limits requests to 'r' per second with the given burst.
func WithRateLimit(r float64, burst int) Option {
	return func(client *Client) {
		client.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

func NewClient(baseURL, token string, logger log.FieldLogger, options ...Option) *Client {
	client := Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Token:   token,
		http:    &http.Client{Timeout: 5 * time.Minute},
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
		log:     logger,
	}

	for _, option := range options {
		option(&client)
	}

	return &client
}

// Billing fetches the billing records for the date range, inclusive.
func (c *Client) Billing(ctx context.Context, start, end time.Time) (*records.Table, error) {
	query := url.Values{}
	query.Set("start", start.Format(period.APIDate))
	query.Set("end", end.Format(period.APIDate))

	return c.get(ctx, BillingPath, query)
}

// UsageEvents fetches every usage event. The API does not filter by date.
func (c *Client) UsageEvents(ctx context.Context) (*records.Table, error) {
	return c.get(ctx, UsageEventsPath, nil)
}

func (c *Client) Reservations(ctx context.Context) (*records.Table, error) {
	return c.get(ctx, ReservationsPath, nil)
}

func (c *Client) Users(ctx context.Context) (*records.Table, error) {
	return c.get(ctx, UsersPath, nil)
}

func (c *Client) Tools(ctx context.Context) (*records.Table, error) {
	return c.get(ctx, ToolsPath, nil)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values) (*records.Table, error) {
	if strings.TrimSpace(c.Token) == "" {
		return nil, fmt.Errorf("missing NEMO API token")
	}

	u := c.BaseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	rq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	rq.Header.Set("Authorization", "Token "+c.Token)
	rq.Header.Set("Accept", "application/json")

	c.debugf("GET %v", u)

	response, err := c.http.Do(rq)
	if err != nil {
		return nil, fmt.Errorf("error fetching %v (%w)", endpoint, err)
	}

	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return nil, &StatusError{
			URL:        endpoint,
			StatusCode: response.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	table, err := records.DecodeJSON(response.Body)
	if err != nil {
		return nil, fmt.Errorf("invalid response from %v (%w)", endpoint, err)
	}

	if c.log != nil {
		c.log.WithFields(log.Fields{"endpoint": endpoint, "records": table.Len()}).Infof("fetched %v records", table.Len())
	}

	return table, nil
}

func (c *Client) debugf(format string, args ...any) {
	if c.log != nil {
		c.log.Debugf(format, args...)
	}
}

type StatusError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: %v %v (%v)", e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}

	return fmt.Sprintf("%v: %v %v", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Descriptor returns a short name for an API endpoint for use in file names,
// e.g. 'billing_data' for https://nemo.stanford.edu/api/billing/billing-data/.
func Descriptor(endpoint string) string {
	p := endpoint
	if u, err := url.Parse(endpoint); err == nil {
		p = u.Path
	}

	parts := []string{}
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}

	if len(parts) == 0 {
		return "data"
	}

	return strings.ReplaceAll(path.Base(parts[len(parts)-1]), "-", "_")
}
