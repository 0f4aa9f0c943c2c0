package dem

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geoquery/internal/resilience"
)

const (
	defaultBaseURL = "https://portal.opentopography.org"
	defaultDEMType = "SRTMGL1"
)

// OpenTopography downloads global DEMs from the OpenTopography API.
type OpenTopography struct {
	apiKey     string
	baseURL    string
	demType    string
	httpClient *http.Client
	retry      resilience.RetryConfig
}

// OTOption configures an OpenTopography provider.
type OTOption func(*OpenTopography)

// WithBaseURL points the provider at another API host.
func WithBaseURL(u string) OTOption {
	return func(o *OpenTopography) {
		o.baseURL = strings.TrimRight(u, "/")
	}
}

// WithDEMType selects the dataset, e.g. SRTMGL1 or COP30.
func WithDEMType(t string) OTOption {
	return func(o *OpenTopography) {
		o.demType = t
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) OTOption {
	return func(o *OpenTopography) {
		o.httpClient = hc
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) OTOption {
	return func(o *OpenTopography) {
		o.retry = cfg
	}
}

// NewOpenTopography creates a provider authenticated with apiKey.
func NewOpenTopography(apiKey string, opts ...OTOption) *OpenTopography {
	o := &OpenTopography{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		demType:    defaultDEMType,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name implements Provider.
func (o *OpenTopography) Name() string { return "opentopography" }

// Download implements Provider.
func (o *OpenTopography) Download(ctx context.Context, b Bounds, dst string) error {
	if o.apiKey == "" {
		return eris.New("dem: opentopography api key is not configured")
	}

	cfg := o.retry
	cfg.OnRetry = resilience.RetryLogger("opentopography", "globaldem")
	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return o.download(ctx, b, dst)
	})
}

func (o *OpenTopography) download(ctx context.Context, b Bounds, dst string) error {
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	params := url.Values{
		"demtype":      {o.demType},
		"south":        {ff(b.South)},
		"north":        {ff(b.North)},
		"west":         {ff(b.West)},
		"east":         {ff(b.East)},
		"outputFormat": {"GTiff"},
		"API_Key":      {o.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/API/globaldem?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "dem: build request")
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "dem: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return resilience.StatusError("opentopography", resp.StatusCode)
	}

	f, err := os.Create(dst)
	if err != nil {
		return eris.Wrap(err, "dem: create file")
	}
	n, err := io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return eris.Wrap(err, "dem: write body")
	}
	if n == 0 {
		return eris.New("dem: empty response body")
	}
	return nil
}
