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

package graffitiutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	graffiti "github.com/floraaa826/Graffiti-City"
	"github.com/lnashier/viper"
	"github.com/spf13/cast"
)

// ConfigData holds the configuration of a single run.
type ConfigData struct {
	// BoundaryFile is the boundary source. It may be a local path,
	// an HTTP URL, or a blob location.
	BoundaryFile string
	Boundary     graffiti.BoundaryConfig

	// IncidentsFile is the incident source. It may be a local path,
	// an HTTP URL, or a blob location.
	IncidentsFile string

	Grid *graffiti.GridConfig

	// OutputFile is the STL output location, and ASCII chooses between
	// ASCII and binary STL.
	OutputFile string
	ASCII      bool

	// CellShapefile and CellSpreadsheet are optional outputs of the
	// OutputVariables for every grid cell.
	CellShapefile   string
	CellSpreadsheet string
	OutputVariables map[string]string

	// GridCache is an optional file where the rasterized grid is cached.
	GridCache string

	PreviewFile string
	Preview     graffiti.PreviewConfig

	// HeightPlot is an optional histogram of stack heights.
	HeightPlot string
	PlotBins   int

	// DownloadDir is where remote inputs are cached.
	DownloadDir string

	LogFile string
	Verbose bool
}

// LoadConfig unmarshals a viper configuration.
func LoadConfig(cfg *viper.Viper) (*ConfigData, error) {
	outputVars, err := GetStringMapString("OutputVariables", cfg)
	if err != nil {
		return nil, err
	}
	c := &ConfigData{
		BoundaryFile: os.ExpandEnv(cfg.GetString("BoundaryFile")),
		Boundary: graffiti.BoundaryConfig{
			Mode:   graffiti.RingMode(os.ExpandEnv(cfg.GetString("Boundary.Mode"))),
			Row:    cfg.GetInt("Boundary.Row"),
			Column: cfg.GetInt("Boundary.Column"),
		},
		IncidentsFile: os.ExpandEnv(cfg.GetString("IncidentsFile")),
		Grid: &graffiti.GridConfig{
			Width:        cfg.GetFloat64("Grid.Width"),
			Height:       cfg.GetFloat64("Grid.Height"),
			Scale:        cfg.GetFloat64("Grid.Scale"),
			FillGaps:     cfg.GetBool("Grid.FillGaps"),
			BaseHeight:   cfg.GetFloat64("Base.Height"),
			BaseSize:     cfg.GetFloat64("Base.Size"),
			MinLayers:    cfg.GetInt("Stack.MinLayers"),
			MaxLayers:    cfg.GetInt("Stack.MaxLayers"),
			MinHeight:    cfg.GetFloat64("Stack.MinHeight"),
			MaxHeight:    cfg.GetFloat64("Stack.MaxHeight"),
			MinFootprint: cfg.GetFloat64("Stack.MinFootprint"),
			MaxFootprint: cfg.GetFloat64("Stack.MaxFootprint"),
			Seed:         cfg.GetInt64("Stack.Seed"),
			StartColor:   cfg.GetString("Colors.Start"),
			EndColor:     cfg.GetString("Colors.End"),
			BaseColor:    cfg.GetString("Colors.Base"),
		},
		OutputFile:      os.ExpandEnv(cfg.GetString("OutputFile")),
		ASCII:           cfg.GetBool("ASCII"),
		CellShapefile:   os.ExpandEnv(cfg.GetString("CellShapefile")),
		CellSpreadsheet: os.ExpandEnv(cfg.GetString("CellSpreadsheet")),
		OutputVariables: outputVars,
		GridCache:       os.ExpandEnv(cfg.GetString("GridCache")),
		PreviewFile:     os.ExpandEnv(cfg.GetString("Preview.File")),
		Preview: graffiti.PreviewConfig{
			Rows: cfg.GetInt("Preview.Rows"),
			Cols: cfg.GetInt("Preview.Cols"),
			Size: cfg.GetInt("Preview.Size"),
		},
		HeightPlot:  os.ExpandEnv(cfg.GetString("HeightPlot")),
		PlotBins:    cfg.GetInt("PlotBins"),
		DownloadDir: os.ExpandEnv(cfg.GetString("DownloadDir")),
		Verbose:     cfg.GetBool("Verbose"),
	}
	if err := c.Grid.Check(); err != nil {
		return nil, err
	}
	switch c.Boundary.Mode {
	case graffiti.KeepRings, graffiti.FlattenRings:
	default:
		return nil, fmt.Errorf("parsing configuration: Boundary.Mode=%q but should be %q or %q",
			c.Boundary.Mode, graffiti.KeepRings, graffiti.FlattenRings)
	}
	if c.Boundary.Row < 0 || c.Boundary.Column < 0 {
		return nil, fmt.Errorf("parsing configuration: Boundary.Row=%d and Boundary.Column=%d should be >=0",
			c.Boundary.Row, c.Boundary.Column)
	}
	if c.BoundaryFile == "" {
		return nil, fmt.Errorf("parsing configuration: BoundaryFile is not specified")
	}
	if c.IncidentsFile == "" {
		return nil, fmt.Errorf("parsing configuration: IncidentsFile is not specified")
	}
	if c.PlotBins < 1 {
		return nil, fmt.Errorf("parsing configuration: PlotBins=%d but should be >0", c.PlotBins)
	}
	if c.CellShapefile != "" || c.CellSpreadsheet != "" {
		if c.OutputVariables, err = checkOutputVars(c.OutputVariables); err != nil {
			return nil, err
		}
	}
	if c.OutputFile, err = checkOutputFile(c.OutputFile); err != nil {
		return nil, err
	}
	c.LogFile = checkLogFile(os.ExpandEnv(cfg.GetString("LogFile")), c.OutputFile)
	return c, nil
}

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("there are no variables specified for output. Please fill in " +
			"the OutputVariables configuration and try again")
	}
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o, nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="graffiti_city.stl")`)
	}
	if IsBlob(f) {
		bucket, _, err := splitBlob(f)
		if err != nil {
			return f, err
		}
		if _, err = OpenBucket(context.TODO(), bucket); err != nil {
			return f, fmt.Errorf("graffiti: error when checking OutputFile location: %v", err)
		}
		return f, nil
	}
	if _, err := os.Stat(filepath.Dir(f)); err != nil {
		return f, fmt.Errorf("graffiti: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		if v == "" {
			return map[string]string{}, nil
		}
		d := json.NewDecoder(bytes.NewBufferString(v))
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			return nil, fmt.Errorf("graffitiutil: parsing %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("graffitiutil: invalid type for %s: %#v", varName, i)
	}
}
