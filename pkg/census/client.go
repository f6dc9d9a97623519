// Package census fetches ACS 5-year demographics from the Census Data API.
package census

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.census.gov/data"
	defaultYear    = 2023
)

// ACS variable codes for the demographics the planner scores on.
const (
	varPopulation        = "B01003_001E" // total population
	varPovertyUniverse   = "B17021_001E" // poverty status universe
	varPovertyBelow      = "B17021_002E" // income below poverty level
	varSNAPHouseholds    = "B22010_001E" // household universe
	varSNAPReceiving     = "B22010_002E" // households receiving SNAP
	varVehicleHouseholds = "B08201_001E" // household universe
	varVehicleNone       = "B08201_002E" // households with no vehicle
)

// Demographics holds the ACS attributes for one geography.
type Demographics struct {
	GeoID             string
	Population        int
	PovertyRate       float64
	BenefitRate       float64
	VehicleAccessRate float64
}

// Client fetches demographics by geography.
type Client interface {
	// BlockGroups returns demographics for every block group in a county.
	// state and county are FIPS codes ("48", "453").
	BlockGroups(ctx context.Context, state, county string) ([]Demographics, error)

	// Tracts returns demographics for every tract in a county.
	Tracts(ctx context.Context, state, county string) ([]Demographics, error)
}

// Option configures the client.
type Option func(*client)

// WithAPIKey sets the Census API key. Unkeyed requests are limited to 500
// per day.
func WithAPIKey(key string) Option {
	return func(c *client) { c.apiKey = key }
}

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(base string) Option {
	return func(c *client) { c.baseURL = base }
}

// WithYear sets the ACS 5-year vintage.
func WithYear(year int) Option {
	return func(c *client) { c.year = year }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithRateLimit sets the requests-per-second limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	year       int
	limiter    *rate.Limiter
}

// NewClient creates a Census Data API client.
func NewClient(opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		year:       defaultYear,
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
