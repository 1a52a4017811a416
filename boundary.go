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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	orbjson "github.com/paulmach/orb/geojson"
)

// RingMode specifies how the rings of a multipolygon are turned into
// a boundary.
type RingMode string

const (
	// KeepRings keeps every ring of every polygon. Containment
	// follows the even-odd rule across all rings.
	KeepRings RingMode = "rings"

	// FlattenRings joins every coordinate pair into a single ring,
	// ignoring ring and polygon separators.
	FlattenRings RingMode = "flatten"
)

// lonLat is the spatial reference that boundaries are stored in.
const lonLat = "+proj=longlat +datum=WGS84 +no_defs"

// Boundary is a polygon in longitude (X) and latitude (Y).
type Boundary struct {
	geom.Polygon
}

// BoundaryConfig specifies how a boundary file should be read.
type BoundaryConfig struct {
	// Mode is the ring handling for WKT input.
	Mode RingMode

	// Row and Column locate the WKT text within the data table of a
	// Socrata rows.json export.
	Row, Column int
}

// Contains reports whether p lies inside the boundary. Points on an edge
// are considered inside.
func (b *Boundary) Contains(p geom.Point) bool {
	return p.Within(b.Polygon) != geom.Outside
}

// Bounds returns the longitude and latitude extremes of the boundary
// vertices.
func (b *Boundary) Bounds() *geom.Bounds {
	bounds := geom.NewBounds()
	for _, ring := range b.Polygon {
		for _, p := range ring {
			bounds.Extend(geom.NewBoundsPoint(p))
		}
	}
	return bounds
}

// NumPoints returns the total number of vertices in the boundary.
func (b *Boundary) NumPoints() int {
	n := 0
	for _, ring := range b.Polygon {
		n += len(ring)
	}
	return n
}

// CleanWKT parses a WKT POLYGON or MULTIPOLYGON into a boundary. Every
// returned ring is closed.
func CleanWKT(text string, mode RingMode) (*Boundary, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("graffiti: empty boundary WKT")
	}
	switch mode {
	case FlattenRings:
		ring, err := flattenWKT(text)
		if err != nil {
			return nil, err
		}
		return &Boundary{Polygon: geom.Polygon{closeRing(ring)}}, nil
	case KeepRings, "":
		g, err := wkt.Unmarshal(text)
		if err != nil {
			return nil, fmt.Errorf("graffiti: parsing boundary WKT: %v", err)
		}
		return fromOrb(g)
	default:
		return nil, fmt.Errorf("graffiti: invalid ring mode %q", mode)
	}
}

// flattenWKT strips the geometry label and all parentheses and reads the
// remaining comma separated "lon lat" pairs as one ring.
func flattenWKT(text string) ([]geom.Point, error) {
	if i := strings.Index(text, "("); i >= 0 {
		text = text[i:]
	}
	text = strings.NewReplacer("(", "", ")", "").Replace(text)
	pairs := strings.Split(text, ",")
	ring := make([]geom.Point, 0, len(pairs))
	for _, pair := range pairs {
		f := strings.Fields(pair)
		if len(f) < 2 {
			return nil, fmt.Errorf("graffiti: invalid WKT coordinate %q", strings.TrimSpace(pair))
		}
		lon, err := strconv.ParseFloat(f[0], 64)
		if err != nil {
			return nil, fmt.Errorf("graffiti: invalid WKT longitude %q: %v", f[0], err)
		}
		lat, err := strconv.ParseFloat(f[1], 64)
		if err != nil {
			return nil, fmt.Errorf("graffiti: invalid WKT latitude %q: %v", f[1], err)
		}
		ring = append(ring, geom.Point{X: lon, Y: lat})
	}
	return ring, nil
}

func closeRing(ring []geom.Point) []geom.Point {
	if len(ring) == 0 {
		return ring
	}
	if !ring[0].Equals(ring[len(ring)-1]) {
		ring = append(ring, ring[0])
	}
	return ring
}

func orbPolygons(g orb.Geometry) ([]orb.Polygon, error) {
	switch t := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{t}, nil
	case orb.MultiPolygon:
		return t, nil
	case orb.Collection:
		var polys []orb.Polygon
		for _, gg := range t {
			p, err := orbPolygons(gg)
			if err != nil {
				return nil, err
			}
			polys = append(polys, p...)
		}
		return polys, nil
	default:
		return nil, fmt.Errorf("graffiti: unsupported boundary geometry type %T", g)
	}
}

func fromOrb(g orb.Geometry) (*Boundary, error) {
	polys, err := orbPolygons(g)
	if err != nil {
		return nil, err
	}
	b := new(Boundary)
	for _, poly := range polys {
		for _, r := range poly {
			if len(r) < 3 {
				continue
			}
			ring := make([]geom.Point, len(r))
			for i, p := range r {
				ring[i] = geom.Point{X: p.Lon(), Y: p.Lat()}
			}
			b.Polygon = append(b.Polygon, closeRing(ring))
		}
	}
	if len(b.Polygon) == 0 {
		return nil, fmt.Errorf("graffiti: boundary has no rings with at least 3 points")
	}
	return b, nil
}

// ReadSocrataWKT reads a Socrata "rows.json" export and returns the WKT
// text stored at data[row][column].
func ReadSocrataWKT(r io.Reader, row, column int) (string, error) {
	var doc struct {
		Data [][]interface{} `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return "", fmt.Errorf("graffiti: decoding rows.json: %v", err)
	}
	if row < 0 || row >= len(doc.Data) {
		return "", fmt.Errorf("graffiti: rows.json row %d out of range; the table has %d rows", row, len(doc.Data))
	}
	if column < 0 || column >= len(doc.Data[row]) {
		return "", fmt.Errorf("graffiti: rows.json column %d out of range; row %d has %d columns", column, row, len(doc.Data[row]))
	}
	s, ok := doc.Data[row][column].(string)
	if !ok {
		return "", fmt.Errorf("graffiti: rows.json data[%d][%d] is %T, not WKT text", row, column, doc.Data[row][column])
	}
	return s, nil
}

// ReadBoundary reads a boundary from a file. The format is chosen by the
// file extension: ".wkt" holds WKT text, ".json" holds either a Socrata
// rows.json export or GeoJSON, ".geojson" holds GeoJSON, and ".shp" is an
// ESRI shapefile.
func ReadBoundary(path string, c BoundaryConfig) (*Boundary, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return readBoundaryShapefile(path)
	}
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graffiti: reading boundary file: %v", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson":
		return decodeBoundaryGeoJSON(b)
	case ".json":
		if isSocrata(b) {
			text, err := ReadSocrataWKT(bytes.NewReader(b), c.Row, c.Column)
			if err != nil {
				return nil, err
			}
			return CleanWKT(text, c.Mode)
		}
		return decodeBoundaryGeoJSON(b)
	default:
		return CleanWKT(string(b), c.Mode)
	}
}

func isSocrata(b []byte) bool {
	var doc struct {
		Meta json.RawMessage `json:"meta"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return false
	}
	return len(doc.Data) > 0 && doc.Data[0] == '['
}

// decodeBoundaryGeoJSON decodes a GeoJSON polygon or multipolygon, either
// bare, as a feature or as a feature collection of them.
func decodeBoundaryGeoJSON(b []byte) (*Boundary, error) {
	if fc, err := orbjson.UnmarshalFeatureCollection(b); err == nil && len(fc.Features) > 0 {
		var c orb.Collection
		for _, f := range fc.Features {
			if f.Geometry != nil {
				c = append(c, f.Geometry)
			}
		}
		return fromOrb(c)
	}
	if f, err := orbjson.UnmarshalFeature(b); err == nil && f.Geometry != nil {
		return fromOrb(f.Geometry)
	}
	if g, err := orbjson.UnmarshalGeometry(b); err == nil && g.Geometry() != nil {
		return fromOrb(g.Geometry())
	}
	g, err := geojson.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("graffiti: decoding boundary GeoJSON: %v", err)
	}
	return fromPolygonal(g)
}

func fromPolygonal(g geom.Geom) (*Boundary, error) {
	b := new(Boundary)
	switch t := g.(type) {
	case geom.Polygon:
		b.Polygon = append(b.Polygon, t...)
	case geom.MultiPolygon:
		for _, p := range t {
			b.Polygon = append(b.Polygon, p...)
		}
	default:
		return nil, fmt.Errorf("graffiti: invalid boundary geometry type %T", g)
	}
	for i, ring := range b.Polygon {
		b.Polygon[i] = closeRing(ring)
	}
	if len(b.Polygon) == 0 {
		return nil, fmt.Errorf("graffiti: boundary is empty")
	}
	return b, nil
}

// readBoundaryShapefile reads every polygon in a shapefile into one
// boundary, reprojecting to longitude/latitude when the shapefile has
// projection information.
func readBoundaryShapefile(path string) (*Boundary, error) {
	f, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("graffiti: opening boundary shapefile: %v", err)
	}
	defer f.Close()
	trans, err := lonLatTransform(f)
	if err != nil {
		return nil, err
	}
	b := new(Boundary)
	for {
		g, _, more := f.DecodeRowFields()
		if !more {
			break
		}
		if trans != nil {
			if g, err = g.Transform(trans); err != nil {
				return nil, fmt.Errorf("graffiti: reprojecting boundary: %v", err)
			}
		}
		p, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("graffiti: boundary shapefile holds %T, not polygons", g)
		}
		for _, pp := range p.Polygons() {
			for _, ring := range pp {
				b.Polygon = append(b.Polygon, closeRing(ring))
			}
		}
	}
	if err := f.Error(); err != nil {
		return nil, fmt.Errorf("graffiti: reading boundary shapefile: %v", err)
	}
	if len(b.Polygon) == 0 {
		return nil, fmt.Errorf("graffiti: boundary shapefile %s has no polygons", path)
	}
	return b, nil
}

// lonLatTransform returns a transform from the projection of the
// shapefile to longitude/latitude, or nil if the shapefile has no
// projection file.
func lonLatTransform(f *shp.Decoder) (proj.Transformer, error) {
	sr, err := f.SR()
	if err != nil {
		// Shapefiles without a .prj are assumed to be in longitude/latitude.
		return nil, nil
	}
	dst, err := proj.Parse(lonLat)
	if err != nil {
		return nil, fmt.Errorf("graffiti: parsing longitude/latitude projection: %v", err)
	}
	trans, err := sr.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("graffiti: creating reprojector: %v", err)
	}
	return trans, nil
}

// validBounds checks that the bounds span a non-zero area of finite
// coordinates.
func validBounds(b *geom.Bounds) error {
	for _, v := range []float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("graffiti: boundary has non-finite extent %+v", *b)
		}
	}
	if !(b.Max.X > b.Min.X) || !(b.Max.Y > b.Min.Y) {
		return fmt.Errorf("graffiti: boundary has zero-area extent %+v", *b)
	}
	return nil
}
