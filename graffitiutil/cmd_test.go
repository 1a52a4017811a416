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
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	graffiti "github.com/floraaa826/Graffiti-City"
)

// testRun sets up the environment used by testdata/config.toml and
// returns the output directory.
func testRun(t *testing.T) (string, func()) {
	dir, err := ioutil.TempDir("", "graffiti_out")
	if err != nil {
		t.Fatal(err)
	}
	os.Setenv("GRAFFITI_ROOT", "..")
	os.Setenv("GRAFFITI_OUT", dir)
	Cfg.Set("config", "../testdata/config.toml")
	return dir, func() {
		os.RemoveAll(dir)
		Root.SetOutput(nil)
	}
}

func TestVersion(t *testing.T) {
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), graffiti.Version) {
		t.Errorf("unexpected version output %q", b.String())
	}
}

func TestRootHelp(t *testing.T) {
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"--help"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"graffitiweb", "build", "grid"} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("help is missing %q:\n%s", want, b.String())
		}
	}
}

func TestConfigCmd(t *testing.T) {
	_, cleanup := testRun(t)
	defer cleanup()
	var b bytes.Buffer
	Root.SetOutput(&b)
	Root.SetArgs([]string{"config"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	for _, want := range []string{"BoundaryFile", "[Grid]", "[Stack]", "rows.json"} {
		if !strings.Contains(out, want) {
			t.Errorf("configuration output is missing %q:\n%s", want, out)
		}
	}
}

func TestBuild(t *testing.T) {
	dir, cleanup := testRun(t)
	defer cleanup()
	var b bytes.Buffer
	Root.SetOutput(&b)
	Root.SetArgs([]string{"build"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"graffiti_city.stl", "graffiti_city.log", "cells.shp", "cells.dbf", "cells.prj", "grid.gob", "heights.png"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("missing output: %v", err)
		}
	}
	stl, err := ioutil.ReadFile(filepath.Join(dir, "graffiti_city.stl"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(stl, []byte("solid graffiti_city")) {
		t.Error("STL file is not ASCII")
	}
	if !strings.Contains(b.String(), "summary") {
		t.Errorf("log output is missing the summary:\n%s", b.String())
	}

	// The second build loads the cached grid and gives the same terrain.
	b.Reset()
	Root.SetArgs([]string{"build"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "loading grid from cache") {
		t.Error("grid was not loaded from the cache")
	}
	stl2, err := ioutil.ReadFile(filepath.Join(dir, "graffiti_city.stl"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(facets(stl), facets(stl2)) {
		t.Error("builds with the same seed differ")
	}
}

// facets returns the sorted facets of an ASCII STL file. Triangle order
// may differ between meshes with the same contents.
func facets(stl []byte) []string {
	f := strings.Split(string(stl), "endfacet")
	sort.Strings(f)
	return f
}

func TestBuildNoStacks(t *testing.T) {
	dir, cleanup := testRun(t)
	defer cleanup()
	incidents := filepath.Join(dir, "far.json")
	if err := ioutil.WriteFile(incidents, []byte(`[{"lat": 0, "lon": 0}]`), 0644); err != nil {
		t.Fatal(err)
	}
	Cfg.Set("IncidentsFile", incidents)
	defer Cfg.Set("IncidentsFile", "${GRAFFITI_ROOT}/testdata/incidents.json")

	var b bytes.Buffer
	Root.SetOutput(&b)
	Root.SetArgs([]string{"build"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "graffiti_city.stl")); err != nil {
		t.Error(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "heights.png")); !os.IsNotExist(err) {
		t.Error("height plot should be skipped")
	}
	for _, want := range []string{"skipping height plot", "summary"} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("log output is missing %q:\n%s", want, b.String())
		}
	}
}

func TestGrid(t *testing.T) {
	dir, cleanup := testRun(t)
	defer cleanup()
	var b bytes.Buffer
	Root.SetOutput(&b)
	Root.SetArgs([]string{"grid"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "grid.gob")); err != nil {
		t.Error(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "graffiti_city.stl")); !os.IsNotExist(err) {
		t.Error("grid should not write an STL file")
	}
}
