package mfapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mf-returns-service/internal/nav"
)

const DefaultBaseURL = "https://api.mfapi.in"

// ErrNotFound is returned when the upstream answers 404 or returns a scheme
// without any NAV rows.
var ErrNotFound = errors.New("scheme not found")

// Limiter gates outbound requests; *ratelimiter.Limiter satisfies it.
type Limiter interface {
	Acquire(ctx context.Context) error
}

type Client struct {
	baseURL string
	http    *http.Client
	rl      Limiter
	log     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithRateLimiter(rl Limiter) Option {
	return func(c *Client) { c.rl = rl }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type SchemeListItem struct {
	SchemeCode int64  `json:"schemeCode"`
	SchemeName string `json:"schemeName"`
}

type SchemeMeta struct {
	FundHouse      string `json:"fund_house"`
	SchemeType     string `json:"scheme_type"`
	SchemeCategory string `json:"scheme_category"`
	SchemeCode     int64  `json:"scheme_code"`
	SchemeName     string `json:"scheme_name"`
}

type SchemeResponse struct {
	Meta SchemeMeta `json:"meta"`
	Data []nav.Raw  `json:"data"` // newest first, dd-mm-yyyy dates
}

// ListSchemes returns the full scheme directory.
func (c *Client) ListSchemes(ctx context.Context) ([]SchemeListItem, error) {
	var out []SchemeListItem
	if err := c.getJSON(ctx, c.baseURL+"/mf", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Search(ctx context.Context, q string) ([]SchemeListItem, error) {
	u, err := url.Parse(c.baseURL + "/mf/search")
	if err != nil {
		return nil, err
	}
	qs := u.Query()
	qs.Set("q", q)
	u.RawQuery = qs.Encode()

	var out []SchemeListItem
	if err := c.getJSON(ctx, u.String(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetScheme(ctx context.Context, schemeCode int64) (SchemeResponse, error) {
	u := fmt.Sprintf("%s/mf/%d", c.baseURL, schemeCode)
	var out SchemeResponse
	if err := c.getJSON(ctx, u, &out); err != nil {
		return SchemeResponse{}, err
	}
	if len(out.Data) == 0 {
		return SchemeResponse{}, fmt.Errorf("scheme %d: %w", schemeCode, ErrNotFound)
	}
	return out, nil
}

// Scheme fetches the full history for code and converts it to the source
// shape used by the calculators. Unknown codes report nav.ErrUnknownScheme.
func (c *Client) Scheme(ctx context.Context, code string) (nav.Scheme, error) {
	code64, err := strconv.ParseInt(code, 10, 64)
	if err != nil || code64 <= 0 {
		return nav.Scheme{}, fmt.Errorf("scheme %q: %w", code, nav.ErrUnknownScheme)
	}
	resp, err := c.GetScheme(ctx, code64)
	if errors.Is(err, ErrNotFound) {
		return nav.Scheme{}, fmt.Errorf("%w: %w", nav.ErrUnknownScheme, err)
	}
	if err != nil {
		return nav.Scheme{}, err
	}
	return resp.Scheme(), nil
}

func (r SchemeResponse) Scheme() nav.Scheme {
	return nav.Scheme{
		Meta: nav.Meta{
			Code:      strconv.FormatInt(r.Meta.SchemeCode, 10),
			Name:      r.Meta.SchemeName,
			FundHouse: r.Meta.FundHouse,
			Category:  r.Meta.SchemeCategory,
			Type:      r.Meta.SchemeType,
		},
		Rows: r.Data,
	}
}

// GetSchemeRange fetches NAV data for a scheme bounded by startDate/endDate (inclusive).
func (c *Client) GetSchemeRange(
	ctx context.Context,
	schemeCode int64,
	startDate, endDate time.Time,
) (SchemeResponse, error) {
	u, err := url.Parse(fmt.Sprintf("%s/mf/%d", c.baseURL, schemeCode))
	if err != nil {
		return SchemeResponse{}, err
	}
	q := u.Query()
	q.Set("startDate", startDate.UTC().Format("2006-01-02"))
	q.Set("endDate", endDate.UTC().Format("2006-01-02"))
	u.RawQuery = q.Encode()

	var out SchemeResponse
	if err := c.getJSON(ctx, u.String(), &out); err != nil {
		return SchemeResponse{}, err
	}
	return out, nil
}

// StatusError is a non-2xx upstream answer. A 404 matches ErrNotFound.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mfapi %s: http %d", e.URL, e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

func (c *Client) logger() *slog.Logger {
	if c.log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.log
}

func (c *Client) getJSON(ctx context.Context, url string, dst any) error {
	start := time.Now()
	log := c.logger().With("url", url)
	log.Debug("mfapi request")

	if c.rl != nil {
		if err := c.rl.Acquire(ctx); err != nil {
			log.Warn("mfapi rate_limited", "error", err)
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error("mfapi http_do", "error", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("mfapi non_2xx", "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
		return &StatusError{URL: url, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		log.Error("mfapi decode", "error", err)
		return fmt.Errorf("mfapi %s: decode: %w", url, err)
	}
	log.Info("mfapi ok", "duration_ms", time.Since(start).Milliseconds())
	return nil
}
