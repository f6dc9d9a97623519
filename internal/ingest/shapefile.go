package ingest

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// ShapefileOptions names the attribute fields carrying the geography ID and
// population count. TIGER block-group files use GEOID20 / POP20.
type ShapefileOptions struct {
	GeoIDField string
	PopField   string
}

// ReadCells reads a polygon shapefile into cells anchored at each polygon's
// area centroid. Records without a geography ID or a parseable geometry are
// skipped.
func ReadCells(shpPath string, opts ShapefileOptions) ([]CellSeed, error) {
	if opts.GeoIDField == "" {
		return nil, eris.New("ingest: geoid field is required")
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	geoIdx, ok := fieldIdx[strings.ToLower(opts.GeoIDField)]
	if !ok {
		return nil, eris.Errorf("ingest: field %s not in shapefile", opts.GeoIDField)
	}
	popIdx, hasPop := fieldIdx[strings.ToLower(opts.PopField)]

	var seeds []CellSeed
	skipped := 0
	for reader.Next() {
		_, shape := reader.Shape()

		geoID := attribute(reader, geoIdx)
		lat, lon, ok := centroid(shape)
		if geoID == "" || !ok {
			skipped++
			continue
		}

		seed := CellSeed{GeoID: geoID, Lat: lat, Lon: lon}
		if hasPop {
			if pop, err := strconv.Atoi(attribute(reader, popIdx)); err == nil && pop >= 0 {
				seed.Population = pop
			}
		}
		seeds = append(seeds, seed)
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	return seeds, nil
}

func attribute(r *shp.Reader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(r.Attribute(idx), "\x00"))
}

// centroid returns the (lat, lon) anchor for a shape. Polygons use the
// area centroid; points pass through.
func centroid(shape shp.Shape) (lat, lon float64, ok bool) {
	switch s := shape.(type) {
	case *shp.Point:
		return s.Y, s.X, true
	case *shp.Polygon:
		poly := polygonToGeom(s)
		if poly == nil {
			return 0, 0, false
		}
		c := xy.PolygonsCentroid(poly)
		if len(c) < 2 {
			return 0, 0, false
		}
		return c[1], c[0], true
	default:
		return 0, 0, false
	}
}

// polygonToGeom converts a shapefile polygon's parts into geom rings.
func polygonToGeom(p *shp.Polygon) *geom.Polygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	poly := geom.NewPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		coords := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			coords = append(coords, geom.Coord{p.Points[j].X, p.Points[j].Y})
		}
		ring := geom.NewLinearRing(geom.XY)
		if _, err := ring.SetCoords(coords); err != nil {
			continue
		}
		if err := poly.Push(ring); err != nil {
			continue
		}
	}

	if poly.NumLinearRings() == 0 {
		return nil
	}
	return poly
}
