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
	"reflect"
	"testing"

	graffiti "github.com/floraaa826/Graffiti-City"
	"github.com/lnashier/viper"
)

// defaultViper returns a configuration holding the default value of
// every option.
func defaultViper() *viper.Viper {
	v := viper.New()
	for _, o := range options {
		if o.name == "config" {
			continue
		}
		v.Set(o.name, o.defaultVal)
	}
	return v
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(defaultViper())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg.Grid, graffiti.DefaultGridConfig()) {
		t.Errorf("grid: have %+v, want %+v", cfg.Grid, graffiti.DefaultGridConfig())
	}
	if cfg.Boundary != (graffiti.BoundaryConfig{Mode: graffiti.KeepRings, Row: 4, Column: 12}) {
		t.Errorf("boundary: have %+v", cfg.Boundary)
	}
	if cfg.LogFile != "graffiti_city.log" {
		t.Errorf("log file: have %s", cfg.LogFile)
	}
	if cfg.PlotBins != 20 || !cfg.ASCII {
		t.Errorf("have PlotBins=%d and ASCII=%v", cfg.PlotBins, cfg.ASCII)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]interface{}
	}{
		{name: "scale", set: map[string]interface{}{"Grid.Scale": 0.0}},
		{name: "mode", set: map[string]interface{}{"Boundary.Mode": "spiral"}},
		{name: "row", set: map[string]interface{}{"Boundary.Row": -1}},
		{name: "boundary", set: map[string]interface{}{"BoundaryFile": ""}},
		{name: "incidents", set: map[string]interface{}{"IncidentsFile": ""}},
		{name: "bins", set: map[string]interface{}{"PlotBins": 0}},
		{name: "output", set: map[string]interface{}{"OutputFile": ""}},
		{name: "output dir", set: map[string]interface{}{"OutputFile": "/does/not/exist/city.stl"}},
		{name: "output vars", set: map[string]interface{}{
			"CellShapefile":   "cells.shp",
			"OutputVariables": map[string]string{},
		}},
		{name: "color", set: map[string]interface{}{"Colors.Start": "red"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v := defaultViper()
			for key, val := range test.set {
				v.Set(key, val)
			}
			if _, err := LoadConfig(v); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadConfigOutputVars(t *testing.T) {
	v := defaultViper()
	v.Set("CellShapefile", "cells.shp")
	v.Set("OutputVariables", `{"Tall": "max(Height -\n 20, 0)"}`)
	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"Tall": "max(Height -  20, 0)"}
	if !reflect.DeepEqual(cfg.OutputVariables, want) {
		t.Errorf("have %v, want %v", cfg.OutputVariables, want)
	}
}

func TestGetStringMapString(t *testing.T) {
	tests := []struct {
		name string
		val  interface{}
		want map[string]string
	}{
		{name: "nil", want: map[string]string{}},
		{name: "empty", val: "", want: map[string]string{}},
		{name: "json", val: `{"A": "Height", "B": "Incidents"}`, want: map[string]string{"A": "Height", "B": "Incidents"}},
		{name: "map", val: map[string]string{"A": "Height"}, want: map[string]string{"A": "Height"}},
		{name: "interface map", val: map[string]interface{}{"a": "Height"}, want: map[string]string{"a": "Height"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v := viper.New()
			if test.val != nil {
				v.Set("vars", test.val)
			}
			have, err := GetStringMapString("vars", v)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(have, test.want) {
				t.Errorf("have %v, want %v", have, test.want)
			}
		})
	}
	for _, bad := range []interface{}{`{"A": `, 12} {
		v := viper.New()
		v.Set("vars", bad)
		if _, err := GetStringMapString("vars", v); err == nil {
			t.Errorf("%v: expected an error", bad)
		}
	}
}
