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
	"bufio"
	"fmt"
	"io"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/sirupsen/logrus"
	"github.com/unixpickle/model3d/model3d"
)

// parseColor parses a hex color such as "#4D4844".
func parseColor(h string) (colorful.Color, error) {
	c, err := colorful.Hex(h)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("graffiti: invalid color %q: %v", h, err)
	}
	return c, nil
}

// LayerColor returns the display color of layer l in cell c. Base tiles,
// layers marking the first or last base tile of a column, and layers with a
// fixed color use that color; all other layers are shaded along a gradient
// from StartColor in the first row to EndColor in the last row.
func (t *Terrain) LayerColor(c *Cell, l *Layer) colorful.Color {
	cfg := t.Config
	if l.Base || l.First || l.Last {
		return mustColor(cfg.BaseColor)
	}
	if l.Color != "" {
		if col, err := parseColor(l.Color); err == nil {
			return col
		}
	}
	return t.rowColor(c.Y)
}

func (t *Terrain) rowColor(y int) colorful.Color {
	cfg := t.Config
	var f float64
	if rows := cfg.Rows(); rows > 1 {
		f = float64(y) / float64(rows-1)
	}
	return mustColor(cfg.StartColor).BlendRgb(mustColor(cfg.EndColor), f)
}

// mustColor parses a color that GridConfig.Check has already validated.
func mustColor(h string) colorful.Color {
	c, err := parseColor(h)
	if err != nil {
		panic(err)
	}
	return c
}

// layerBox returns the corners of the box for layer l of cell c, which
// sits at height z.
func (t *Terrain) layerBox(c *Cell, l *Layer, z float64) (min, max model3d.Coord3D) {
	s := t.Config.Scale
	h, w, d := t.layerSize(l)
	if w == 0 {
		w = s
	}
	if d == 0 {
		d = s
	}
	center := model3d.XYZ(float64(c.X)*s+l.OffsetX, float64(c.Y)*s+l.OffsetY, z+h/2)
	half := model3d.XYZ(w/2, d/2, h/2)
	return center.Sub(half), center.Add(half)
}

// BuildMesh returns a function that converts the layers of every cell into
// a triangle mesh. Each layer is an axis-aligned box stacked on top of the
// layers below it. Zero-height layers add no geometry.
func BuildMesh() DomainManipulator {
	return func(t *Terrain) error {
		if t.Cells == nil {
			return fmt.Errorf("graffiti: BuildMesh requires a grid; add RegularGrid first")
		}
		m := model3d.NewMesh()
		boxes := 0
		t.EachCell(func(c *Cell) {
			var z float64
			for _, l := range c.Layers {
				h, _, _ := t.layerSize(l)
				if h != 0 {
					m.AddMesh(model3d.NewMeshRect(t.layerBox(c, l, z)))
					boxes++
				}
				z += h
			}
		})
		t.mesh = m
		t.log().WithFields(logrus.Fields{
			"boxes":     boxes,
			"triangles": len(m.TriangleSlice()),
		}).Info("built mesh")
		return nil
	}
}

// Mesh returns the mesh created by BuildMesh, or nil if it has not been
// built.
func (t *Terrain) Mesh() *model3d.Mesh { return t.mesh }

// WriteSTL writes the terrain mesh to w as an ASCII STL file if ascii is
// true and as a binary STL file otherwise.
func (t *Terrain) WriteSTL(w io.Writer, ascii bool) error {
	if t.mesh == nil {
		return fmt.Errorf("graffiti: no mesh to write; add BuildMesh first")
	}
	tris := t.mesh.TriangleSlice()
	if !ascii {
		if err := model3d.WriteSTL(w, tris); err != nil {
			return fmt.Errorf("graffiti: writing STL: %v", err)
		}
		return nil
	}
	return writeASCIISTL(w, "graffiti_city", tris)
}

func writeASCIISTL(w io.Writer, name string, tris []*model3d.Triangle) error {
	b := bufio.NewWriter(w)
	fmt.Fprintf(b, "solid %s\n", name)
	for _, tri := range tris {
		n := tri.Normal()
		fmt.Fprintf(b, "facet normal %g %g %g\n", n.X, n.Y, n.Z)
		fmt.Fprintln(b, "  outer loop")
		for _, p := range tri {
			fmt.Fprintf(b, "    vertex %g %g %g\n", p.X, p.Y, p.Z)
		}
		fmt.Fprintln(b, "  endloop")
		fmt.Fprintln(b, "endfacet")
	}
	fmt.Fprintf(b, "endsolid %s\n", name)
	if err := b.Flush(); err != nil {
		return fmt.Errorf("graffiti: writing STL: %v", err)
	}
	return nil
}
