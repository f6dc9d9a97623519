package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCellsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.json")
	data := `[
		{"id": "a", "lat": 30.0, "lon": -97.7, "population": 1200, "risk_score": 3.5, "need_index": 420},
		{"id": "b", "lat": 30.1, "lon": -97.6, "population": 0, "need_index": 100},
		{"id": "", "lat": 30.2, "lon": -97.5, "population": 500}
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cells, err := LoadCellsFile(path)
	require.NoError(t, err)
	require.Len(t, cells, 1, "unpopulated and invalid cells are dropped")
	assert.Equal(t, "a", cells[0].ID)
	assert.Equal(t, 1200, cells[0].Population)
	assert.Equal(t, 420.0, cells[0].NeedIndex)
}

func TestLoadCellsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.csv")
	data := "id,lat,lon,population,risk_score,poverty_rate,need_index\n" +
		"a,30.0,-97.7,1200,3.5,0.25,420\n" +
		"b,30.1,-97.6,not-a-number,1.0,0.1,100\n" +
		"c,30.2,-97.5,800,2.0,0.2,\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cells, err := LoadCellsFile(path)
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, "a", cells[0].ID)
	assert.Equal(t, 0.25, cells[0].PovertyRate)
	assert.Equal(t, 0.0, cells[0].VehicleAccessRate, "absent column defaults to zero")
	assert.Equal(t, "c", cells[1].ID)
}

func TestLoadCellsCSVMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,lat,lon\na,30,-97\n"), 0o644))

	_, err := LoadCellsFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column population")
}

func TestLoadCellsUnsupportedExtension(t *testing.T) {
	_, err := LoadCellsFile("cells.parquet")
	require.Error(t, err)
}
