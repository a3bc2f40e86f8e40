// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package geocode resolves GPS coordinates to the nearest known place,
// entirely offline, from a GeoNames-style places table.
//
// Places are bucketed into a spatial hash grid so a lookup only inspects
// cells near the query point instead of scanning the whole table. When the
// rings nearest the query are empty the search radius widens until a place
// is found or the table is exhausted.
package geocode

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// Place is a resolved location from the places table.
type Place struct {
	Name        string
	Country     string
	CountryCode string
	State       string
	Region      string
	Lat         float64
	Lon         float64
}

// cellKey is a grid cell coordinate.
type cellKey struct {
	x, y int
}

// Geocoder answers nearest-place queries. It is immutable after New and
// safe for concurrent use.
type Geocoder struct {
	cells    map[cellKey][]*Place
	cellSize float64 // degrees
	count    int
}

// New builds a geocoder over the given places. cellSizeDegrees controls
// lookup granularity; 1 degree (~111km at the equator) suits country/city
// scale tables.
func New(places []Place, cellSizeDegrees float64) *Geocoder {
	if cellSizeDegrees <= 0 {
		cellSizeDegrees = 1.0
	}
	g := &Geocoder{
		cells:    make(map[cellKey][]*Place),
		cellSize: cellSizeDegrees,
	}
	for i := range places {
		p := &places[i]
		key := g.keyFor(p.Lat, p.Lon)
		g.cells[key] = append(g.cells[key], p)
		g.count++
	}
	return g
}

// LoadCSV reads a places table with columns
// name,country,country_code,state,region,lat,lon (no header). The row shape
// follows the GeoNames extract the original archive's geocoder shipped.
func LoadCSV(path string) ([]Place, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open places table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 7

	var places []Place
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read places table: %w", err)
		}
		lat, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return nil, fmt.Errorf("places table row %q: bad latitude: %w", row[0], err)
		}
		lon, err := strconv.ParseFloat(row[6], 64)
		if err != nil {
			return nil, fmt.Errorf("places table row %q: bad longitude: %w", row[0], err)
		}
		places = append(places, Place{
			Name:        row[0],
			Country:     row[1],
			CountryCode: row[2],
			State:       row[3],
			Region:      row[4],
			Lat:         lat,
			Lon:         lon,
		})
	}
	return places, nil
}

// Count returns the number of indexed places.
func (g *Geocoder) Count() int {
	return g.count
}

// Nearest returns the closest place to (lat, lon), or false when the table
// is empty.
func (g *Geocoder) Nearest(lat, lon float64) (Place, bool) {
	if g.count == 0 {
		return Place{}, false
	}
	center := g.keyFor(lat, lon)

	// Widen the search ring by ring. Once a candidate is found, one extra
	// ring is inspected: a place in the next ring can still be closer than
	// one in the current ring's far corner.
	maxRing := int(360/g.cellSize) + 1
	var best *Place
	bestDist := math.MaxFloat64
	foundAt := -1

	for ring := 0; ring <= maxRing; ring++ {
		if foundAt >= 0 && ring > foundAt+1 {
			break
		}
		for _, key := range ringKeys(center, ring) {
			for _, p := range g.cells[key] {
				d := haversineKm(lat, lon, p.Lat, p.Lon)
				if d < bestDist {
					bestDist = d
					best = p
				}
			}
		}
		if best != nil && foundAt < 0 {
			foundAt = ring
		}
	}
	if best == nil {
		return Place{}, false
	}
	return *best, true
}

// keyFor returns the cell containing a coordinate, normalizing longitude
// to [-180, 180].
func (g *Geocoder) keyFor(lat, lon float64) cellKey {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return cellKey{
		x: int(math.Floor(lon / g.cellSize)),
		y: int(math.Floor(lat / g.cellSize)),
	}
}

// ringKeys returns the cells at exactly `ring` steps from center
// (Chebyshev distance), i.e. the hollow square around it.
func ringKeys(center cellKey, ring int) []cellKey {
	if ring == 0 {
		return []cellKey{center}
	}
	keys := make([]cellKey, 0, 8*ring)
	for dx := -ring; dx <= ring; dx++ {
		for dy := -ring; dy <= ring; dy++ {
			if max(abs(dx), abs(dy)) != ring {
				continue
			}
			keys = append(keys, cellKey{x: center.x + dx, y: center.y + dy})
		}
	}
	return keys
}

// haversineKm is the spherical distance between two coordinates in km.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
