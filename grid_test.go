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
	"testing"

	"github.com/ctessum/geom"
	"github.com/kr/pretty"
)

// cShape returns a boundary shaped like the letter C, open to the east,
// covering [0, 10] in both directions.
func cShape() *Boundary {
	return &Boundary{Polygon: geom.Polygon{{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 7},
		{X: 10, Y: 7}, {X: 10, Y: 10}, {X: 0, Y: 10}, {X: 0, Y: 0},
	}}}
}

// smallConfig returns a 10x10 grid with unit cells.
func smallConfig() *GridConfig {
	cfg := DefaultGridConfig()
	cfg.Width = 10
	cfg.Height = 10
	cfg.Scale = 1
	cfg.Seed = 1
	return cfg
}

func newTestTerrain(t *testing.T, cfg *GridConfig, funcs ...DomainManipulator) *Terrain {
	tr := &Terrain{InitFuncs: append([]DomainManipulator{cfg.RegularGrid(cShape())}, funcs...)}
	if err := tr.Init(); err != nil {
		t.Fatal(err)
	}
	return tr
}

func countBase(tr *Terrain) int {
	n := 0
	tr.EachCell(func(c *Cell) {
		if c.Base() != nil {
			n++
		}
	})
	return n
}

func TestGridConfigCheck(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *GridConfig)
	}{
		{name: "zero scale", modify: func(c *GridConfig) { c.Scale = 0 }},
		{name: "negative width", modify: func(c *GridConfig) { c.Width = -1 }},
		{name: "scale too large", modify: func(c *GridConfig) { c.Scale = 900 }},
		{name: "layers", modify: func(c *GridConfig) { c.MinLayers, c.MaxLayers = 3, 2 }},
		{name: "heights", modify: func(c *GridConfig) { c.MinHeight, c.MaxHeight = 10, 5 }},
		{name: "footprint", modify: func(c *GridConfig) { c.MinFootprint = 0 }},
		{name: "color", modify: func(c *GridConfig) { c.BaseColor = "brown" }},
	}
	if err := DefaultGridConfig().Check(); err != nil {
		t.Fatalf("default configuration: %v", err)
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := DefaultGridConfig()
			test.modify(c)
			if err := c.Check(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestGridDimensions(t *testing.T) {
	c := DefaultGridConfig()
	if c.Cols() != 160 || c.Rows() != 160 {
		t.Errorf("have %dx%d, want 160x160", c.Cols(), c.Rows())
	}
	c.Height = 402
	if c.Rows() != 80 {
		t.Errorf("have %d rows, want 80", c.Rows())
	}
}

func TestRasterize(t *testing.T) {
	tr := newTestTerrain(t, smallConfig(), Rasterize())
	if len(tr.Cells) != 10 || len(tr.Cells[0]) != 10 {
		t.Fatalf("have %dx%d grid", len(tr.Cells), len(tr.Cells[0]))
	}
	if n := countBase(tr); n != 72 {
		t.Errorf("have %d base tiles, want 72", n)
	}
	for _, xy := range [][2]int{{5, 5}, {9, 4}, {3, 3}} {
		if tr.Cell(xy[0], xy[1]).Base() != nil {
			t.Errorf("cell %v should be empty", xy)
		}
	}
	for _, xy := range [][2]int{{0, 5}, {2, 9}, {9, 0}, {9, 9}} {
		if tr.Cell(xy[0], xy[1]).Base() == nil {
			t.Errorf("cell %v should have a base tile", xy)
		}
	}

	// Rasterizing twice does not stack base tiles.
	if err := Rasterize()(tr); err != nil {
		t.Fatal(err)
	}
	if n := countBase(tr); n != 72 {
		t.Errorf("have %d base tiles after second pass, want 72", n)
	}
}

func TestRasterizeNoGrid(t *testing.T) {
	if err := Rasterize()(&Terrain{}); err == nil {
		t.Error("expected an error")
	}
}

func TestFillGaps(t *testing.T) {
	t.Run("fill", func(t *testing.T) {
		tr := newTestTerrain(t, smallConfig(), Rasterize(), FillGaps())
		if n := countBase(tr); n != 100 {
			t.Errorf("have %d base tiles, want 100", n)
		}
		for x, col := range tr.Cells {
			if !col[0].Base().First {
				t.Errorf("column %d: first tile not marked", x)
			}
			if !col[9].Base().Last {
				t.Errorf("column %d: last tile not marked", x)
			}
			for y := 1; y < 9; y++ {
				if b := col[y].Base(); b.First || b.Last {
					t.Errorf("cell (%d, %d) is wrongly marked", x, y)
				}
			}
		}
	})
	t.Run("mark only", func(t *testing.T) {
		cfg := smallConfig()
		cfg.FillGaps = false
		tr := newTestTerrain(t, cfg, Rasterize(), FillGaps())
		if n := countBase(tr); n != 72 {
			t.Errorf("have %d base tiles, want 72", n)
		}
		if !tr.Cell(5, 0).Base().First || !tr.Cell(5, 9).Base().Last {
			t.Error("ends of column 5 not marked")
		}
	})
	t.Run("no tiles", func(t *testing.T) {
		b := &Boundary{Polygon: geom.Polygon{{
			{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 2}, {X: 0, Y: 2}, {X: 0, Y: 0},
		}}}
		cfg := smallConfig()
		tr := &Terrain{InitFuncs: []DomainManipulator{cfg.RegularGrid(b), FillGaps()}}
		if err := tr.Init(); err != nil {
			t.Fatal(err)
		}
		// Without rasterization there is nothing to fill.
		if n := countBase(tr); n != 0 {
			t.Errorf("have %d base tiles, want 0", n)
		}
	})
}

func TestCellIndex(t *testing.T) {
	tr := newTestTerrain(t, smallConfig())
	tests := []struct {
		p    geom.Point
		x, y int
		ok   bool
	}{
		{p: geom.Point{X: 5, Y: 5}, x: 4, y: 4, ok: true},
		{p: geom.Point{X: 0, Y: 0}, x: 0, y: 0, ok: true},
		{p: geom.Point{X: 10, Y: 10}, x: 9, y: 9, ok: true},
		{p: geom.Point{X: 10.5, Y: 1}, x: 9, y: 0, ok: true},
		{p: geom.Point{X: -0.1, Y: 5}, x: -1, y: -1, ok: false},
		{p: geom.Point{X: 5, Y: 11.2}, x: -1, y: -1, ok: false},
	}
	for _, test := range tests {
		x, y, ok := tr.CellIndex(test.p)
		if x != test.x || y != test.y || ok != test.ok {
			t.Errorf("%+v: have (%d, %d, %v), want (%d, %d, %v)", test.p, x, y, ok, test.x, test.y, test.ok)
		}
	}
}

func TestCellGeometry(t *testing.T) {
	tr := newTestTerrain(t, smallConfig())
	want := geom.Polygon{{{X: 2, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 3}}}
	have := tr.cellGeometry(2, 3)
	diff := pretty.Diff(have, want)
	if len(diff) != 0 {
		t.Fatal(diff)
	}
	if c := tr.CellCenter(2, 3); !c.Equals(geom.Point{X: 2.5, Y: 3.5}) {
		t.Errorf("center: have %+v", c)
	}
}

func TestCellStack(t *testing.T) {
	tr := &Terrain{Config: smallConfig()}
	c := &Cell{Layers: []*Layer{{Base: true}, {H: 5}, {H: 2.5}}}
	if c.Base() == nil {
		t.Error("missing base")
	}
	if h := tr.StackHeight(c); h != 15.5 {
		t.Errorf("height: have %g, want 15.5", h)
	}
	if n := c.Incidents(); n != 2 {
		t.Errorf("incidents: have %d, want 2", n)
	}
	empty := &Cell{Layers: []*Layer{{H: 5}}}
	if empty.Base() != nil {
		t.Error("unexpected base")
	}
}

func TestRegularGridBadBoundary(t *testing.T) {
	line := &Boundary{Polygon: geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 0}}}}
	tr := &Terrain{InitFuncs: []DomainManipulator{smallConfig().RegularGrid(line)}}
	if err := tr.Init(); err == nil {
		t.Error("expected an error")
	}
}
