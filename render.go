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
	"fmt"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/unixpickle/model3d/model3d"
	"github.com/unixpickle/model3d/render3d"
)

// PreviewConfig specifies the preview image.
type PreviewConfig struct {
	Rows, Cols int // Number of views in each direction
	Size       int // Edge length of each view in pixels
}

// colorAt returns the color of the terrain surface at model coordinate p.
func (t *Terrain) colorAt(p model3d.Coord3D) colorful.Color {
	s := t.Config.Scale
	c := t.Cell(int(math.Floor(p.X/s)), int(math.Floor(p.Y/s)))
	if c == nil {
		return t.rowColor(0)
	}
	var z float64
	for _, l := range c.Layers {
		h, _, _ := t.layerSize(l)
		if p.Z <= z+h+1e-9 {
			return t.LayerColor(c, l)
		}
		z += h
	}
	return t.rowColor(c.Y)
}

// SavePreview renders a grid of views of the terrain mesh from random
// angles and saves it to path as a PNG image.
func (t *Terrain) SavePreview(path string, cfg PreviewConfig) error {
	if t.mesh == nil {
		return fmt.Errorf("graffiti: no mesh to render; add BuildMesh first")
	}
	if cfg.Rows < 1 || cfg.Cols < 1 || cfg.Size < 1 {
		return fmt.Errorf("graffiti: preview configuration: %dx%d views of %d pixels is invalid", cfg.Rows, cfg.Cols, cfg.Size)
	}
	colorFunc := func(c model3d.Coord3D, rc model3d.RayCollision) render3d.Color {
		col := t.colorAt(c)
		return render3d.NewColorRGB(col.R, col.G, col.B)
	}
	if err := render3d.SaveRandomGrid(path, t.mesh, cfg.Rows, cfg.Cols, cfg.Size, colorFunc); err != nil {
		return fmt.Errorf("graffiti: saving preview: %v", err)
	}
	t.log().WithField("file", path).Info("saved preview")
	return nil
}
