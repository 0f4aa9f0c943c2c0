package boundary

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/geoquery/internal/resilience"
	"github.com/sells-group/geoquery/internal/vector"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org"
	defaultUserAgent    = "geoquery/1.0"
)

// Nominatim fetches administrative boundaries from an OSM Nominatim
// instance.
type Nominatim struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NominatimOption configures a Nominatim source.
type NominatimOption func(*Nominatim)

// WithBaseURL points the client at another Nominatim instance.
func WithBaseURL(u string) NominatimOption {
	return func(n *Nominatim) {
		n.baseURL = strings.TrimRight(u, "/")
	}
}

// WithUserAgent sets the User-Agent header the usage policy requires.
func WithUserAgent(ua string) NominatimOption {
	return func(n *Nominatim) {
		n.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) NominatimOption {
	return func(n *Nominatim) {
		n.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit. rps <= 0 disables
// throttling.
func WithRateLimit(rps float64) NominatimOption {
	return func(n *Nominatim) {
		if rps <= 0 {
			n.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		n.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) NominatimOption {
	return func(n *Nominatim) {
		n.retry = cfg
	}
}

// NewNominatim creates a Nominatim source. The public instance allows one
// request per second.
func NewNominatim(opts ...NominatimOption) *Nominatim {
	n := &Nominatim{
		baseURL:    defaultNominatimURL,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(1, 1),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name implements Source.
func (n *Nominatim) Name() string { return "nominatim" }

// Available implements Source.
func (n *Nominatim) Available() bool { return n.baseURL != "" }

// Fetch implements Source.
func (n *Nominatim) Fetch(ctx context.Context, name string) (*vector.FeatureCollection, error) {
	cfg := n.retry
	cfg.OnRetry = resilience.RetryLogger("nominatim", "search")

	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return n.search(ctx, name)
	})
	if err != nil {
		return nil, err
	}

	fc, err := vector.ParseGeoJSON(body)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: nominatim parse response")
	}
	if fc.Len() == 0 {
		return nil, ErrNotFound
	}
	return fc, nil
}

func (n *Nominatim) search(ctx context.Context, name string) ([]byte, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "boundary: nominatim rate limit")
	}

	params := url.Values{
		"q":               {strings.TrimSpace(name)},
		"format":          {"geojson"},
		"polygon_geojson": {"1"},
		"limit":           {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: nominatim build request")
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("nominatim", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: nominatim read body")
	}
	return body, nil
}
