package advisor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodshed/siteplan/internal/model"
)

type fakeCompleter struct {
	system string
	prompt string
	out    string
	err    error
}

func (f *fakeCompleter) Complete(_ context.Context, system, prompt string) (string, error) {
	f.system = system
	f.prompt = prompt
	return f.out, f.err
}

func sampleResult() *model.OptimizationResult {
	return &model.OptimizationResult{
		Status: model.StatusSuccess,
		Facilities: []model.Facility{
			{ID: "hub-1", Tier: model.TierDepot, Lat: 30.27, Lon: -97.74, ServiceRadius: 6, ServedFacilityIDs: []string{"a", "b"}},
			{ID: "a", Tier: model.TierDistribution},
		},
		TotalExpectedImpact: 680,
		BudgetUsed:          383744,
		CoveragePercentage:  83.3,
	}
}

func TestNewDisabledWithoutKey(t *testing.T) {
	assert.Nil(t, New("", "claude-sonnet-4-5-20250929"))
	assert.NotNil(t, New("sk-test", "claude-sonnet-4-5-20250929"))
}

func TestNarratePromptContents(t *testing.T) {
	fake := &fakeCompleter{out: "The plan covers most of the county."}
	a := NewWithCompleter(fake)

	out, err := a.Narrate(context.Background(), "travis", sampleResult())
	require.NoError(t, err)
	assert.Equal(t, "The plan covers most of the county.", out)

	assert.Contains(t, fake.system, "operations analyst")
	assert.Contains(t, fake.prompt, "travis")
	assert.Contains(t, fake.prompt, "680 people")
	assert.Contains(t, fake.prompt, "hub-1")
	assert.Contains(t, fake.prompt, "serves 2 distribution points")
}

func TestNarratePropagatesError(t *testing.T) {
	a := NewWithCompleter(&fakeCompleter{err: errors.New("api down")})
	_, err := a.Narrate(context.Background(), "travis", sampleResult())
	assert.Error(t, err)
}
