package census

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodshed/siteplan/internal/resilience"
)

// BlockGroups returns demographics for every block group in a county.
func (c *client) BlockGroups(ctx context.Context, state, county string) ([]Demographics, error) {
	return c.query(ctx, "block group:*", state, county)
}

// Tracts returns demographics for every tract in a county.
func (c *client) Tracts(ctx context.Context, state, county string) ([]Demographics, error) {
	return c.query(ctx, "tract:*", state, county)
}

func (c *client) query(ctx context.Context, geoFor, state, county string) ([]Demographics, error) {
	if state == "" || county == "" {
		return nil, eris.New("census: state and county FIPS codes are required")
	}

	params := url.Values{
		"get": {strings.Join([]string{
			"GEO_ID",
			varPopulation,
			varPovertyUniverse, varPovertyBelow,
			varSNAPHouseholds, varSNAPReceiving,
			varVehicleHouseholds, varVehicleNone,
		}, ",")},
		"for": {geoFor},
		"in":  {fmt.Sprintf("state:%s county:%s", state, county)},
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	reqURL := fmt.Sprintf("%s/%d/acs/acs5?%s", c.baseURL, c.year, params.Encode())

	rows, err := resilience.DoVal(ctx, resilience.RetryConfig{
		OnRetry: resilience.RetryLogger("census", "acs5"),
	}, func(ctx context.Context) ([][]string, error) {
		return c.fetch(ctx, reqURL)
	})
	if err != nil {
		return nil, err
	}

	if len(rows) < 2 {
		return nil, nil
	}

	out := make([]Demographics, 0, len(rows)-1)
	skipped := 0
	for _, row := range rows[1:] {
		d, ok := parseRow(row)
		if !ok {
			skipped++
			continue
		}
		out = append(out, d)
	}
	if skipped > 0 {
		zap.L().Debug("census: skipped malformed rows",
			zap.Int("skipped", skipped),
			zap.String("state", state),
			zap.String("county", county),
		)
	}

	zap.L().Info("census: fetched demographics",
		zap.String("state", state),
		zap.String("county", county),
		zap.String("geography", geoFor),
		zap.Int("rows", len(out)),
	)
	return out, nil
}

func (c *client) fetch(ctx context.Context, reqURL string) ([][]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "census: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "census: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "census: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("census: api returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "census: read body")
	}

	// The Data API returns a JSON array of string arrays; the first row
	// holds column names.
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, eris.Wrap(err, "census: parse response")
	}
	return rows, nil
}

// parseRow converts one data row. Column order matches the get= parameter:
// GEO_ID, population, poverty universe/below, SNAP universe/receiving,
// vehicle universe/none, then the geography columns the API appends.
func parseRow(row []string) (Demographics, bool) {
	if len(row) < 8 {
		return Demographics{}, false
	}

	pop, err := strconv.Atoi(row[1])
	if err != nil || pop < 0 {
		return Demographics{}, false
	}

	d := Demographics{
		GeoID:             trimGeoPrefix(row[0]),
		Population:        pop,
		PovertyRate:       ratio(row[3], row[2]),
		BenefitRate:       ratio(row[5], row[4]),
		VehicleAccessRate: 1 - ratio(row[7], row[6]),
	}
	return d, true
}

// trimGeoPrefix strips the "1500000US" style summary-level prefix from a
// GEO_ID, leaving the bare FIPS code.
func trimGeoPrefix(geoID string) string {
	if i := strings.Index(geoID, "US"); i >= 0 {
		return geoID[i+2:]
	}
	return geoID
}

// ratio divides part by whole, clamped to [0, 1]. ACS suppresses small
// cells with negative sentinels; those collapse to 0.
func ratio(part, whole string) float64 {
	p, err1 := strconv.ParseFloat(part, 64)
	q, err2 := strconv.ParseFloat(whole, 64)
	if err1 != nil || err2 != nil || q <= 0 || p < 0 {
		return 0
	}
	r := p / q
	if r > 1 {
		return 1
	}
	return r
}
