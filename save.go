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
	"io"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

// savedGrid is the gob representation of a rasterized grid.
type savedGrid struct {
	Config   *GridConfig
	Boundary *Boundary
	Bounds   *geom.Bounds
	Cells    [][]*Cell
}

// Save returns a function that saves the grid in t to a gob file
// (format description at https://golang.org/pkg/encoding/gob/).
func Save(w io.Writer) DomainManipulator {
	return func(t *Terrain) error {
		if t.Cells == nil {
			return fmt.Errorf("graffiti.Terrain.Save: no grid to save")
		}
		e := gob.NewEncoder(w)
		g := savedGrid{
			Config:   t.Config,
			Boundary: t.Boundary,
			Bounds:   t.bounds,
			Cells:    t.Cells,
		}
		if err := e.Encode(g); err != nil {
			return fmt.Errorf("graffiti.Terrain.Save: %v", err)
		}
		return nil
	}
}

// Load returns a function that loads a previously Saved grid into a
// Terrain. If config is not nil, it replaces the saved configuration, which
// allows the stacking and color settings to change between runs. The grid
// dimensions in config must match the saved grid.
func Load(r io.Reader, config *GridConfig) DomainManipulator {
	return func(t *Terrain) error {
		dec := gob.NewDecoder(r)
		var g savedGrid
		if err := dec.Decode(&g); err != nil {
			return fmt.Errorf("graffiti.Terrain.Load: %v", err)
		}
		if config != nil {
			if err := config.Check(); err != nil {
				return err
			}
			rows := 0
			if len(g.Cells) > 0 {
				rows = len(g.Cells[0])
			}
			if config.Cols() != len(g.Cells) || config.Rows() != rows {
				return fmt.Errorf("graffiti.Terrain.Load: saved grid is %dx%d but configuration requires %dx%d",
					len(g.Cells), rows, config.Cols(), config.Rows())
			}
			g.Config = config
		}
		t.Config = g.Config
		t.Boundary = g.Boundary
		t.bounds = g.Bounds
		t.Cells = g.Cells
		t.log().WithFields(logrus.Fields{
			"cols": len(t.Cells),
			"rows": t.Config.Rows(),
		}).Info("loaded grid")
		return nil
	}
}
