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
	"encoding/gob"
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

func init() {
	gob.Register(geom.Polygon{})
}

// GridConfig is a holder for the configuration information for creating
// the terrain grid and the stacks placed on it.
type GridConfig struct {
	Width, Height float64 // Extent of the model in model units
	Scale         float64 // Edge length of a grid cell in model units

	// FillGaps specifies whether cells between the first and last base
	// tile of each column should also receive base tiles.
	FillGaps bool

	BaseHeight float64 // Height of a base tile
	BaseSize   float64 // Width and depth of a base tile

	MinLayers, MaxLayers       int     // Layers stacked per incident, inclusive
	MinHeight, MaxHeight       float64 // Range of random layer heights
	MinFootprint, MaxFootprint float64 // Range of random layer width and depth, as a multiple of Scale

	// Seed seeds the random layer generator. If Seed is 0 the
	// generator is seeded from the clock.
	Seed int64

	StartColor, EndColor string // Ends of the row color gradient, in hex
	BaseColor            string // Color of base tiles, in hex
}

// DefaultGridConfig returns a configuration that fits an 800x800 model
// of Manhattan.
func DefaultGridConfig() *GridConfig {
	return &GridConfig{
		Width:        800,
		Height:       800,
		Scale:        5,
		FillGaps:     true,
		BaseHeight:   8,
		BaseSize:     8,
		MinLayers:    1,
		MaxLayers:    4,
		MinHeight:    5,
		MaxHeight:    25,
		MinFootprint: 0.5,
		MaxFootprint: 1.4,
		StartColor:   "#383430",
		EndColor:     "#77706a",
		BaseColor:    "#4D4844",
	}
}

// Check returns an error if the configuration cannot produce a grid.
func (c *GridConfig) Check() error {
	vars := []float64{c.Width, c.Height, c.Scale, c.BaseHeight, c.BaseSize}
	varNames := []string{"Width", "Height", "Scale", "BaseHeight", "BaseSize"}
	for i, v := range vars {
		if !(v > 0) {
			return fmt.Errorf("graffiti: grid configuration: %s=%g but should be >0", varNames[i], v)
		}
	}
	if c.Cols() < 1 || c.Rows() < 1 {
		return fmt.Errorf("graffiti: grid configuration: Scale=%g is larger than the %gx%g model extent", c.Scale, c.Width, c.Height)
	}
	if c.MinLayers < 0 || c.MaxLayers < c.MinLayers {
		return fmt.Errorf("graffiti: grid configuration: layer range [%d, %d] is invalid", c.MinLayers, c.MaxLayers)
	}
	if c.MinHeight < 0 || c.MaxHeight < c.MinHeight {
		return fmt.Errorf("graffiti: grid configuration: height range [%g, %g) is invalid", c.MinHeight, c.MaxHeight)
	}
	if !(c.MinFootprint > 0) || c.MaxFootprint < c.MinFootprint {
		return fmt.Errorf("graffiti: grid configuration: footprint range [%g, %g) is invalid", c.MinFootprint, c.MaxFootprint)
	}
	for _, h := range []string{c.StartColor, c.EndColor, c.BaseColor} {
		if _, err := parseColor(h); err != nil {
			return err
		}
	}
	return nil
}

// Cols returns the number of grid columns.
func (c *GridConfig) Cols() int { return int(math.Floor(c.Width / c.Scale)) }

// Rows returns the number of grid rows.
func (c *GridConfig) Rows() int { return int(math.Floor(c.Height / c.Scale)) }

// Cell is a single column of the terrain.
type Cell struct {
	X, Y   int      // Column and row index
	Layers []*Layer // Stacked layers, bottom first
}

// Layer is one box in a cell's stack. Base tiles take their size and color
// from the grid configuration, so their own H, W, D and Color are unused.
type Layer struct {
	H, W, D          float64 // Height, width and depth; zero W or D means the grid scale
	OffsetX, OffsetY float64 // Offset of the box center from the cell origin
	Color            string  // Fixed hex color; empty means the row gradient

	Base        bool // Base tile from the boundary rasterization
	First, Last bool // First or last base tile of its column
}

// Base returns the base tile of c, or nil if it has none.
func (c *Cell) Base() *Layer {
	if len(c.Layers) > 0 && c.Layers[0].Base {
		return c.Layers[0]
	}
	return nil
}

// layerSize returns the height, width and depth of l.
func (t *Terrain) layerSize(l *Layer) (h, w, d float64) {
	if l.Base {
		return t.Config.BaseHeight, t.Config.BaseSize, t.Config.BaseSize
	}
	return l.H, l.W, l.D
}

// StackHeight returns the total stack height of c.
func (t *Terrain) StackHeight(c *Cell) float64 {
	var h float64
	for _, l := range c.Layers {
		lh, _, _ := t.layerSize(l)
		h += lh
	}
	return h
}

// Incidents returns the number of stacked non-base layers in c.
func (c *Cell) Incidents() int {
	n := 0
	for _, l := range c.Layers {
		if !l.Base {
			n++
		}
	}
	return n
}

// lerp maps v from the range [a1, b1] to [a2, b2].
func lerp(v, a1, b1, a2, b2 float64) float64 {
	return a2 + (v-a1)/(b1-a1)*(b2-a2)
}

// CellCenter returns the longitude/latitude of the center of cell (x, y).
func (t *Terrain) CellCenter(x, y int) geom.Point {
	b := t.bounds
	return geom.Point{
		X: lerp(float64(x)+0.5, 0, float64(t.Config.Cols()), b.Min.X, b.Max.X),
		Y: lerp(float64(y)+0.5, 0, float64(t.Config.Rows()), b.Min.Y, b.Max.Y),
	}
}

// CellIndex returns the indices of the cell that the longitude/latitude
// point p maps to. The bounds are mapped onto [0, cols-1] and [0, rows-1].
// ok is false if p falls outside of the grid.
func (t *Terrain) CellIndex(p geom.Point) (x, y int, ok bool) {
	b := t.bounds
	cols, rows := t.Config.Cols(), t.Config.Rows()
	fx := math.Floor(lerp(p.X, b.Min.X, b.Max.X, 0, float64(cols-1)))
	fy := math.Floor(lerp(p.Y, b.Min.Y, b.Max.Y, 0, float64(rows-1)))
	if math.IsNaN(fx) || math.IsNaN(fy) || fx < 0 || fy < 0 || fx >= float64(cols) || fy >= float64(rows) {
		return -1, -1, false
	}
	return int(fx), int(fy), true
}

// cellGeometry returns the longitude/latitude footprint of cell (x, y).
func (t *Terrain) cellGeometry(x, y int) geom.Polygon {
	b := t.bounds
	cols, rows := float64(t.Config.Cols()), float64(t.Config.Rows())
	l := lerp(float64(x), 0, cols, b.Min.X, b.Max.X)
	r := lerp(float64(x+1), 0, cols, b.Min.X, b.Max.X)
	d := lerp(float64(y), 0, rows, b.Min.Y, b.Max.Y)
	u := lerp(float64(y+1), 0, rows, b.Min.Y, b.Max.Y)
	return geom.Polygon{{{X: l, Y: d}, {X: r, Y: d}, {X: r, Y: u}, {X: l, Y: u}, {X: l, Y: d}}}
}

// RegularGrid returns a function that allocates an empty grid laid over
// the extent of boundary.
func (c *GridConfig) RegularGrid(boundary *Boundary) DomainManipulator {
	return func(t *Terrain) error {
		if err := c.Check(); err != nil {
			return err
		}
		bounds := boundary.Bounds()
		if err := validBounds(bounds); err != nil {
			return err
		}
		t.Config = c
		t.Boundary = boundary
		t.bounds = bounds
		cols, rows := c.Cols(), c.Rows()
		t.Cells = make([][]*Cell, cols)
		for x := range t.Cells {
			t.Cells[x] = make([]*Cell, rows)
			for y := range t.Cells[x] {
				t.Cells[x][y] = &Cell{X: x, Y: y}
			}
		}
		t.log().WithFields(logrus.Fields{
			"cols":   cols,
			"rows":   rows,
			"points": boundary.NumPoints(),
		}).Info("created grid")
		return nil
	}
}

func baseTile() *Layer { return &Layer{Base: true} }

// Rasterize returns a function that places a base tile in every cell
// whose center lies inside the boundary.
func Rasterize() DomainManipulator {
	return func(t *Terrain) error {
		if t.Boundary == nil || t.Cells == nil {
			return fmt.Errorf("graffiti: Rasterize requires a grid; add RegularGrid first")
		}
		n := 0
		for x, col := range t.Cells {
			for y, cell := range col {
				if cell.Base() != nil {
					continue
				}
				if t.Boundary.Contains(t.CellCenter(x, y)) {
					cell.Layers = append([]*Layer{baseTile()}, cell.Layers...)
					n++
				}
			}
		}
		t.log().WithField("cells", n).Info("rasterized boundary")
		return nil
	}
}

// FillGaps returns a function that marks the first and last base tile of
// each column and adds base tiles to the cells between them that lack one.
// The last tile itself is never added, only marked.
func FillGaps() DomainManipulator {
	return func(t *Terrain) error {
		n := 0
		for _, col := range t.Cells {
			first, last := -1, -1
			for y, cell := range col {
				if cell.Base() == nil {
					continue
				}
				if first < 0 {
					first = y
				}
				last = y
			}
			if first < 0 {
				continue
			}
			col[first].Base().First = true
			col[last].Base().Last = true
			if !t.Config.FillGaps {
				continue
			}
			for y := first; y < last; y++ {
				if col[y].Base() == nil {
					col[y].Layers = append([]*Layer{baseTile()}, col[y].Layers...)
					n++
				}
			}
		}
		t.log().WithField("cells", n).Info("filled gaps")
		return nil
	}
}
