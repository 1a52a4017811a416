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

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Summary holds statistics about a built terrain.
type Summary struct {
	Cells         int     // Total grid cells
	InteriorCells int     // Cells with a base tile
	IncidentCells int     // Cells with at least one incident layer
	Dropped       int     // Incidents outside of the grid
	Layers        int     // Incident layers, not counting base tiles
	MeanHeight    float64 // Mean stack height of incident cells
	MaxHeight     float64 // Maximum stack height
	Triangles     int     // Mesh triangles, or 0 if no mesh has been built
}

// Summarize computes statistics about t.
func (t *Terrain) Summarize() Summary {
	s := Summary{Dropped: t.Dropped}
	t.EachCell(func(c *Cell) {
		s.Cells++
		if c.Base() != nil {
			s.InteriorCells++
		}
		if n := c.Incidents(); n > 0 {
			s.IncidentCells++
			s.Layers += n
		}
	})
	heights := t.stackHeights()
	if len(heights) > 0 {
		s.MeanHeight = stat.Mean(heights, nil)
		s.MaxHeight = floats.Max(heights)
	}
	if t.mesh != nil {
		s.Triangles = len(t.mesh.TriangleSlice())
	}
	return s
}

// Fields returns s as log fields.
func (s Summary) Fields() logrus.Fields {
	return logrus.Fields{
		"cells":          s.Cells,
		"interior_cells": s.InteriorCells,
		"incident_cells": s.IncidentCells,
		"dropped":        s.Dropped,
		"layers":         s.Layers,
		"mean_height":    s.MeanHeight,
		"max_height":     s.MaxHeight,
		"triangles":      s.Triangles,
	}
}

// stackHeights returns the stack heights of the cells with incidents.
func (t *Terrain) stackHeights() []float64 {
	var h []float64
	t.EachCell(func(c *Cell) {
		if c.Incidents() > 0 {
			h = append(h, t.StackHeight(c))
		}
	})
	return h
}

// SaveHeightPlot saves a histogram of the stack heights of the cells with
// incidents to path. The image format is chosen from the file extension.
func (t *Terrain) SaveHeightPlot(path string, bins int) error {
	heights := t.stackHeights()
	if len(heights) == 0 {
		return fmt.Errorf("graffiti: no incident stacks to plot")
	}
	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("graffiti: creating height plot: %v", err)
	}
	p.Title.Text = "Stack heights"
	p.X.Label.Text = "Height"
	p.Y.Label.Text = "Cells"
	h, err := plotter.NewHist(plotter.Values(heights), bins)
	if err != nil {
		return fmt.Errorf("graffiti: creating height histogram: %v", err)
	}
	p.Add(h)
	if err := p.Save(4*vg.Inch, 3*vg.Inch, path); err != nil {
		return fmt.Errorf("graffiti: saving height plot: %v", err)
	}
	t.log().WithField("file", path).Info("saved height plot")
	return nil
}
