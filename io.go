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
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"github.com/tealeg/xlsx"
	"gonum.org/v1/gonum/floats"
)

// lonLatPrj is the projection file written alongside output shapefiles.
const lonLatPrj = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]]`

// CellVariables returns the names and descriptions of the per-cell
// variables that output expressions can use.
func CellVariables() (names []string, descriptions []string) {
	return []string{"Incidents", "Layers", "Height", "Base", "Row", "Col", "Lon", "Lat"},
		[]string{
			"Number of stacked incident layers",
			"Number of layers including the base tile",
			"Total stack height",
			"1 if the cell has a base tile, 0 otherwise",
			"Row index",
			"Column index",
			"Longitude of the cell center",
			"Latitude of the cell center",
		}
}

func (t *Terrain) cellValues(c *Cell) map[string]interface{} {
	center := t.CellCenter(c.X, c.Y)
	var base float64
	if c.Base() != nil {
		base = 1
	}
	return map[string]interface{}{
		"Incidents": float64(c.Incidents()),
		"Layers":    float64(len(c.Layers)),
		"Height":    t.StackHeight(c),
		"Base":      base,
		"Row":       float64(c.Y),
		"Col":       float64(c.X),
		"Lon":       center.X,
		"Lat":       center.Y,
	}
}

// Outputter is a holder for output parameters.
//
// outputVariables maps the names of the fields to write to expressions
// over the cell variables listed by CellVariables.
type Outputter struct {
	fileName        string
	outputVariables map[string]string
	expressions     map[string]*govaluate.EvaluableExpression
	modelVariables  []string
	outputFunctions map[string]govaluate.ExpressionFunction
}

func oneArg(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("graffiti: got %d arguments for function '%s', but needs 1", len(arg), name)
		}
		v, ok := arg[0].(float64)
		if !ok {
			return nil, fmt.Errorf("graffiti: argument to '%s' is %T, not a number", name, arg[0])
		}
		return f(v), nil
	}
}

func manyArgs(name string, f func([]float64) float64) govaluate.ExpressionFunction {
	return func(arg ...interface{}) (interface{}, error) {
		if len(arg) == 0 {
			return nil, fmt.Errorf("graffiti: function '%s' needs at least 1 argument", name)
		}
		v := make([]float64, len(arg))
		for i, a := range arg {
			x, ok := a.(float64)
			if !ok {
				return nil, fmt.Errorf("graffiti: argument to '%s' is %T, not a number", name, a)
			}
			v[i] = x
		}
		return f(v), nil
	}
}

// NewOutputter initializes a new Outputter holder and adds a set of default
// output functions: 'exp(x)', 'sqrt(x)', and 'max(x, ...)' and
// 'min(x, ...)', which return the largest or smallest of their arguments.
func NewOutputter(fileName string, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	funcs := map[string]govaluate.ExpressionFunction{
		"exp":  oneArg("exp", math.Exp),
		"sqrt": oneArg("sqrt", math.Sqrt),
		"max":  manyArgs("max", floats.Max),
		"min":  manyArgs("min", floats.Min),
	}
	for key, val := range outputFunctions {
		funcs[key] = val
	}
	o := &Outputter{
		fileName:        fileName,
		outputVariables: outputVariables,
		expressions:     make(map[string]*govaluate.EvaluableExpression),
		outputFunctions: funcs,
	}
	for key, val := range outputVariables {
		expression, err := govaluate.NewEvaluableExpressionWithFunctions(val, funcs)
		if err != nil {
			return nil, fmt.Errorf("graffiti: output variable %s: %v", key, err)
		}
		o.expressions[key] = expression
		o.modelVariables = append(o.modelVariables, expression.Vars()...)
	}
	o.modelVariables = removeDuplicates(o.modelVariables)
	return o, nil
}

// removeDuplicates removes all duplicated strings from a slice, returning a
// slice that contains only unique strings.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]struct{})
	for _, val := range s {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = struct{}{}
		}
	}
	return result
}

// checkModelVars checks whether the variables used by the output
// expressions are cell variables.
func checkModelVars(g ...string) error {
	names, _ := CellVariables()
	known := make(map[string]struct{})
	for _, n := range names {
		known[n] = struct{}{}
	}
	for _, v := range g {
		if _, ok := known[v]; !ok {
			return fmt.Errorf("graffiti: undefined variable name '%s'", v)
		}
	}
	return nil
}

var fieldName = regexp.MustCompile(`^[A-Za-z]\w*$`)

// checkOutputNames checks whether the output variable names can be used as
// shapefile field names.
func checkOutputNames(o map[string]string) error {
	for key := range o {
		long := len(key) > 10
		badChar := !fieldName.MatchString(key)
		if long && badChar {
			return fmt.Errorf("graffiti: output variable name '%s' exceeds 10 characters and includes unsupported character(s)", key)
		} else if long {
			return fmt.Errorf("graffiti: output variable name '%s' exceeds 10 characters", key)
		} else if badChar {
			return fmt.Errorf("graffiti: output variable name '%s' includes unsupported characters", key)
		}
	}
	return nil
}

// CheckOutputVars ensures the output variables can be calculated.
func (o *Outputter) CheckOutputVars() DomainManipulator {
	return func(t *Terrain) error {
		if len(o.outputVariables) == 0 {
			return fmt.Errorf("graffiti: no output variables")
		}
		if err := checkModelVars(o.modelVariables...); err != nil {
			return err
		}
		return checkOutputNames(o.outputVariables)
	}
}

// Results evaluates the output variables for every cell, in the order of
// Terrain.EachCell.
func (o *Outputter) Results(t *Terrain) (map[string][]float64, error) {
	r := make(map[string][]float64, len(o.expressions))
	var err error
	t.EachCell(func(c *Cell) {
		if err != nil {
			return
		}
		vals := t.cellValues(c)
		for name, e := range o.expressions {
			var v interface{}
			v, err = e.Evaluate(vals)
			if err != nil {
				err = fmt.Errorf("graffiti: evaluating %s for cell (%d, %d): %v", name, c.X, c.Y, err)
				return
			}
			f, ok := v.(float64)
			if !ok {
				err = fmt.Errorf("graffiti: %s evaluates to %T, not a number", name, v)
				return
			}
			r[name] = append(r[name], f)
		}
	})
	return r, err
}

// Output returns a function that writes a polygon shapefile of the grid
// cells holding the output variables, along with a .prj file.
func (o *Outputter) Output() DomainManipulator {
	return func(t *Terrain) error {
		if t.Cells == nil {
			return fmt.Errorf("graffiti: no grid to write; add RegularGrid first")
		}
		results, err := o.Results(t)
		if err != nil {
			return err
		}
		vars := make([]string, 0, len(results))
		for v := range results {
			vars = append(vars, v)
		}
		sort.Strings(vars)
		fields := make([]goshp.Field, len(vars))
		for i, v := range vars {
			fields[i] = goshp.FloatField(v, 14, 8)
		}

		// remove extension and replace it with .shp
		fileBase := strings.TrimSuffix(o.fileName, filepath.Ext(o.fileName))
		fileName := fileBase + ".shp"
		shape, err := shp.NewEncoderFromFields(fileName, goshp.POLYGON, fields...)
		if err != nil {
			return fmt.Errorf("graffiti: creating output shapefile: %v", err)
		}
		i := 0
		t.EachCell(func(c *Cell) {
			if err != nil {
				return
			}
			outFields := make([]interface{}, len(vars))
			for j, v := range vars {
				outFields[j] = results[v][i]
			}
			err = shape.EncodeFields(t.cellGeometry(c.X, c.Y), outFields...)
			i++
		})
		shape.Close()
		if err != nil {
			return fmt.Errorf("graffiti: writing output shapefile: %v", err)
		}

		f, err := os.Create(fileBase + ".prj")
		if err != nil {
			return fmt.Errorf("graffiti: creating output prj file: %v", err)
		}
		fmt.Fprint(f, lonLatPrj)
		if err := f.Close(); err != nil {
			return fmt.Errorf("graffiti: writing output prj file: %v", err)
		}
		t.log().WithField("file", fileName).Info("wrote cell shapefile")
		return nil
	}
}

// Spreadsheet returns a function that writes the output variables of every
// cell that holds at least one layer to an Excel file, one row per cell.
func (o *Outputter) Spreadsheet(path string) DomainManipulator {
	return func(t *Terrain) error {
		results, err := o.Results(t)
		if err != nil {
			return err
		}
		vars := make([]string, 0, len(results))
		for v := range results {
			vars = append(vars, v)
		}
		sort.Strings(vars)

		f := xlsx.NewFile()
		sheet, err := f.AddSheet("cells")
		if err != nil {
			return fmt.Errorf("graffiti: creating spreadsheet: %v", err)
		}
		header := sheet.AddRow()
		for _, h := range append([]string{"Col", "Row"}, vars...) {
			header.AddCell().Value = h
		}
		i := 0
		t.EachCell(func(c *Cell) {
			defer func() { i++ }()
			if len(c.Layers) == 0 {
				return
			}
			row := sheet.AddRow()
			row.AddCell().SetInt(c.X)
			row.AddCell().SetInt(c.Y)
			for _, v := range vars {
				row.AddCell().SetFloat(results[v][i])
			}
		})
		if err := f.Save(path); err != nil {
			return fmt.Errorf("graffiti: saving spreadsheet: %v", err)
		}
		t.log().WithField("file", path).Info("wrote cell spreadsheet")
		return nil
	}
}
