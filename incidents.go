/*
Copyright © 2026 the Graffiti City authors.
This file is part of Graffiti City.

Graffiti City is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Graffiti City is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Graffiti City.  If not, see <http://www.gnu.org/licenses/>.
*/

package graffiti

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Incident is the location of a single graffiti report.
type Incident struct {
	Lat, Lon float64
}

// Point returns the incident as a longitude (X) / latitude (Y) point.
func (i Incident) Point() geom.Point { return geom.Point{X: i.Lon, Y: i.Lat} }

// Incidents is a set of incident locations along with the number of
// input records that could not be read as locations.
type Incidents struct {
	Points  []Incident
	Skipped int
}

// ReadIncidents reads incident locations from a file. Files ending in
// ".shp" are read as point shapefiles. Other files must hold JSON: either
// a GeoJSON FeatureCollection of points, an object whose values are
// records, or an array of records, where each record has "lat" and "lon"
// fields holding numbers or numeric strings.
func ReadIncidents(path string) (*Incidents, error) {
	if strings.ToLower(filepath.Ext(path)) == ".shp" {
		return readIncidentShapefile(path)
	}
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graffiti: reading incidents file: %v", err)
	}
	return DecodeIncidents(b)
}

// DecodeIncidents decodes JSON incident data; see ReadIncidents for the
// accepted layouts.
func DecodeIncidents(b []byte) (*Incidents, error) {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("graffiti: decoding incidents: %v", err)
	}
	var records []interface{}
	switch t := raw.(type) {
	case []interface{}:
		records = t
	case map[string]interface{}:
		if typ, _ := t["type"].(string); typ == "FeatureCollection" {
			return decodeIncidentFeatures(b)
		}
		// Object keys are record ids; sort them so that the order, and
		// therefore the random stacks, are reproducible.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			records = append(records, t[k])
		}
	default:
		return nil, fmt.Errorf("graffiti: incidents must be a JSON object or array, not %T", raw)
	}
	o := new(Incidents)
	for _, r := range records {
		inc, ok := recordIncident(r)
		if !ok {
			o.Skipped++
			continue
		}
		o.Points = append(o.Points, inc)
	}
	return o, nil
}

func recordIncident(r interface{}) (Incident, bool) {
	m, ok := r.(map[string]interface{})
	if !ok {
		return Incident{}, false
	}
	lat, ok1 := lookupFloat(m, "lat", "latitude", "Latitude", "LATITUDE")
	lon, ok2 := lookupFloat(m, "lon", "lng", "longitude", "Longitude", "LONGITUDE")
	if !ok1 || !ok2 {
		return Incident{}, false
	}
	return Incident{Lat: lat, Lon: lon}, true
}

func lookupFloat(m map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		f, err := cast.ToFloat64E(v)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func decodeIncidentFeatures(b []byte) (*Incidents, error) {
	fc, err := orbjson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("graffiti: decoding incident features: %v", err)
	}
	o := new(Incidents)
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Point:
			o.Points = append(o.Points, Incident{Lat: g.Lat(), Lon: g.Lon()})
		case orb.MultiPoint:
			for _, p := range g {
				o.Points = append(o.Points, Incident{Lat: p.Lat(), Lon: p.Lon()})
			}
		default:
			o.Skipped++
		}
	}
	return o, nil
}

func readIncidentShapefile(path string) (*Incidents, error) {
	f, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("graffiti: opening incidents shapefile: %v", err)
	}
	defer f.Close()
	trans, err := lonLatTransform(f)
	if err != nil {
		return nil, err
	}
	o := new(Incidents)
	for {
		g, _, more := f.DecodeRowFields()
		if !more {
			break
		}
		if trans != nil {
			if g, err = g.Transform(trans); err != nil {
				return nil, fmt.Errorf("graffiti: reprojecting incident: %v", err)
			}
		}
		switch p := g.(type) {
		case geom.Point:
			o.Points = append(o.Points, Incident{Lat: p.Y, Lon: p.X})
		case geom.MultiPoint:
			for _, pp := range p {
				o.Points = append(o.Points, Incident{Lat: pp.Y, Lon: pp.X})
			}
		default:
			o.Skipped++
		}
	}
	if err := f.Error(); err != nil {
		return nil, fmt.Errorf("graffiti: reading incidents shapefile: %v", err)
	}
	return o, nil
}

// NewRand returns a random number generator seeded with seed, or with the
// clock if seed is 0.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// uniform returns a random number in [min, max).
func uniform(rng *rand.Rand, min, max float64) float64 {
	return min + rng.Float64()*(max-min)
}

// AddIncidents returns a function that stacks a random number of randomly
// sized layers on the cell of every incident. Incidents that fall outside
// of the grid are counted in Terrain.Dropped.
func AddIncidents(incidents []Incident, rng *rand.Rand) DomainManipulator {
	return func(t *Terrain) error {
		if t.Cells == nil {
			return fmt.Errorf("graffiti: AddIncidents requires a grid; add RegularGrid first")
		}
		c := t.Config
		placed := 0
		for _, inc := range incidents {
			x, y, ok := t.CellIndex(inc.Point())
			if !ok {
				t.Dropped++
				continue
			}
			cell := t.Cells[x][y]
			layers := c.MinLayers + rng.Intn(c.MaxLayers-c.MinLayers+1)
			for i := 0; i < layers; i++ {
				cell.Layers = append(cell.Layers, &Layer{
					H: uniform(rng, c.MinHeight, c.MaxHeight),
					W: uniform(rng, c.MinFootprint*c.Scale, c.MaxFootprint*c.Scale),
					D: uniform(rng, c.MinFootprint*c.Scale, c.MaxFootprint*c.Scale),
				})
			}
			placed++
		}
		t.log().WithFields(logrus.Fields{
			"placed":  placed,
			"dropped": t.Dropped,
		}).Info("stacked incidents")
		return nil
	}
}
