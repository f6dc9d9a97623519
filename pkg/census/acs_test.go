package census

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acsFixture = `[
	["GEO_ID","B01003_001E","B17021_001E","B17021_002E","B22010_001E","B22010_002E","B08201_001E","B08201_002E","state","county","tract","block group"],
	["1500000US484530011001","1200","1150","230","400","100","400","40","48","453","001100","1"],
	["1500000US484530011002","800","790","79","300","30","300","15","48","453","001100","2"],
	["1500000US484530011003","0","0","0","0","0","0","0","48","453","001100","3"]
]`

func TestBlockGroupsParsesRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/2023/acs/acs5")
		assert.Equal(t, "block group:*", r.URL.Query().Get("for"))
		assert.Equal(t, "state:48 county:453", r.URL.Query().Get("in"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, acsFixture)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	got, err := c.BlockGroups(context.Background(), "48", "453")
	require.NoError(t, err)
	require.Len(t, got, 3)

	first := got[0]
	assert.Equal(t, "484530011001", first.GeoID)
	assert.Equal(t, 1200, first.Population)
	assert.InDelta(t, 0.2, first.PovertyRate, 0.001)
	assert.InDelta(t, 0.25, first.BenefitRate, 0.001)
	assert.InDelta(t, 0.9, first.VehicleAccessRate, 0.001)

	// Suppressed universes collapse to zero rates, full vehicle access.
	zero := got[2]
	assert.Equal(t, 0, zero.Population)
	assert.Zero(t, zero.PovertyRate)
	assert.InDelta(t, 1.0, zero.VehicleAccessRate, 0.001)
}

func TestBlockGroupsSendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		_, _ = io.WriteString(w, acsFixture)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithAPIKey("secret"), WithRateLimit(1000))
	_, err := c.BlockGroups(context.Background(), "48", "453")
	require.NoError(t, err)
}

func TestBlockGroupsRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, acsFixture)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	got, err := c.BlockGroups(context.Background(), "48", "453")
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBlockGroupsPermanentStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	_, err := c.BlockGroups(context.Background(), "48", "453")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBlockGroupsSkipsMalformedRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[
			["GEO_ID","B01003_001E","B17021_001E","B17021_002E","B22010_001E","B22010_002E","B08201_001E","B08201_002E","state","county","tract","block group"],
			["1500000US484530011001","not-a-number","0","0","0","0","0","0","48","453","001100","1"],
			["1500000US484530011002","500","500","50","200","20","200","10","48","453","001100","2"]
		]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	got, err := c.BlockGroups(context.Background(), "48", "453")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "484530011002", got[0].GeoID)
}

func TestQueryRequiresFIPS(t *testing.T) {
	c := NewClient()
	_, err := c.BlockGroups(context.Background(), "", "453")
	assert.Error(t, err)
	_, err = c.Tracts(context.Background(), "48", "")
	assert.Error(t, err)
}

func TestTrimGeoPrefix(t *testing.T) {
	assert.Equal(t, "484530011001", trimGeoPrefix("1500000US484530011001"))
	assert.Equal(t, "484530011001", trimGeoPrefix("484530011001"))
}
