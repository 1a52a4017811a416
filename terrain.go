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

// Package graffiti generates a printable terrain of stacked boxes from
// graffiti incident locations inside a geographic boundary.
package graffiti

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/unixpickle/model3d/model3d"
)

// Version gives the version number.
const Version = "0.3.0"

// Terrain holds the current state of a generated city.
type Terrain struct {
	// InitFuncs are functions to be called in the given order
	// when the terrain is built.
	InitFuncs []DomainManipulator

	// Config specifies the grid.
	Config *GridConfig

	// Boundary is the polygon that base tiles are rasterized from.
	Boundary *Boundary

	// Cells holds one entry per grid cell, indexed as Cells[x][y].
	Cells [][]*Cell

	// Dropped is the number of incidents that fell outside of the grid.
	Dropped int

	// Log receives progress messages. If nil, the standard logrus logger
	// is used.
	Log logrus.FieldLogger

	bounds *geom.Bounds
	mesh   *model3d.Mesh
}

// DomainManipulator is a function that changes the state of a Terrain.
type DomainManipulator func(t *Terrain) error

// Init runs the InitFuncs in order.
func (t *Terrain) Init() error {
	if t.Log == nil {
		t.Log = logrus.StandardLogger()
	}
	for i, f := range t.InitFuncs {
		if err := f(t); err != nil {
			return fmt.Errorf("graffiti: initialization step %d: %v", i, err)
		}
	}
	return nil
}

// Cell returns the cell at column x and row y, or nil if the
// indices are outside of the grid.
func (t *Terrain) Cell(x, y int) *Cell {
	if x < 0 || x >= len(t.Cells) {
		return nil
	}
	if y < 0 || y >= len(t.Cells[x]) {
		return nil
	}
	return t.Cells[x][y]
}

// EachCell calls f for every cell in column-major order.
func (t *Terrain) EachCell(f func(c *Cell)) {
	for _, col := range t.Cells {
		for _, c := range col {
			f(c)
		}
	}
}

// Bounds returns the longitude/latitude extent that the grid is laid over.
func (t *Terrain) Bounds() *geom.Bounds { return t.bounds }

func (t *Terrain) log() logrus.FieldLogger {
	if t.Log == nil {
		return logrus.StandardLogger()
	}
	return t.Log
}
