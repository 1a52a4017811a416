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
	"html/template"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/gobra"
	graffiti "github.com/floraaa826/Graffiti-City"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	def := graffiti.DefaultGridConfig()

	// buildSets are the flag sets of the commands that build a terrain,
	// and gridSets are those of the commands that create a grid.
	buildSets := []*pflag.FlagSet{buildCmd.Flags()}
	gridSets := []*pflag.FlagSet{buildCmd.Flags(), gridCmd.Flags()}

	// Options are the configuration options available to Graffiti City.
	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "BoundaryFile",
			usage: `
              BoundaryFile is the path to the boundary polygon. Files ending
              in .wkt hold WKT text, .json files hold a Socrata rows.json
              export or GeoJSON, .geojson files hold GeoJSON, and .shp
              files are shapefiles. It can be a local path, an http(s) URL,
              or a blob location (file://, gs://, or s3://).`,
			shorthand:  "b",
			defaultVal: "${GRAFFITI_ROOT}/testdata/manhattan.wkt",
			flagsets:   gridSets,
		},
		{
			name: "Boundary.Mode",
			usage: `
              Boundary.Mode is either "rings", which keeps every ring of a
              multipolygon boundary, or "flatten", which joins every
              coordinate of the WKT text into a single ring.`,
			defaultVal: string(graffiti.KeepRings),
			flagsets:   gridSets,
		},
		{
			name: "Boundary.Row",
			usage: `
              Boundary.Row is the row of a Socrata rows.json data table
              holding the boundary WKT.`,
			defaultVal: 4,
			flagsets:   gridSets,
		},
		{
			name: "Boundary.Column",
			usage: `
              Boundary.Column is the column of a Socrata rows.json data table
              holding the boundary WKT.`,
			defaultVal: 12,
			flagsets:   gridSets,
		},
		{
			name: "IncidentsFile",
			usage: `
              IncidentsFile is the path to the graffiti incident locations:
              a JSON object or array of records with lat and lon fields, a
              GeoJSON FeatureCollection of points, or a point shapefile.
              Remote locations are allowed as for BoundaryFile.`,
			shorthand:  "i",
			defaultVal: "${GRAFFITI_ROOT}/testdata/incidents.json",
			flagsets:   buildSets,
		},
		{
			name: "Grid.Width",
			usage: `
              Grid.Width is the width of the model.`,
			defaultVal: def.Width,
			flagsets:   gridSets,
		},
		{
			name: "Grid.Height",
			usage: `
              Grid.Height is the depth of the model.`,
			defaultVal: def.Height,
			flagsets:   gridSets,
		},
		{
			name: "Grid.Scale",
			usage: `
              Grid.Scale is the edge length of a grid cell. The grid has
              floor(Width/Scale) columns and floor(Height/Scale) rows.`,
			defaultVal: def.Scale,
			flagsets:   gridSets,
		},
		{
			name: "Grid.FillGaps",
			usage: `
              Grid.FillGaps specifies whether cells between the first and last
              base tile of each column should also get base tiles.`,
			defaultVal: def.FillGaps,
			flagsets:   gridSets,
		},
		{
			name: "Base.Height",
			usage: `
              Base.Height is the height of the base tiles.`,
			defaultVal: def.BaseHeight,
			flagsets:   gridSets,
		},
		{
			name: "Base.Size",
			usage: `
              Base.Size is the width and depth of the base tiles.`,
			defaultVal: def.BaseSize,
			flagsets:   gridSets,
		},
		{
			name: "Stack.MinLayers",
			usage: `
              Stack.MinLayers is the smallest number of layers stacked for
              each incident.`,
			defaultVal: def.MinLayers,
			flagsets:   buildSets,
		},
		{
			name: "Stack.MaxLayers",
			usage: `
              Stack.MaxLayers is the largest number of layers stacked for
              each incident.`,
			defaultVal: def.MaxLayers,
			flagsets:   buildSets,
		},
		{
			name: "Stack.MinHeight",
			usage: `
              Stack.MinHeight is the smallest random layer height.`,
			defaultVal: def.MinHeight,
			flagsets:   buildSets,
		},
		{
			name: "Stack.MaxHeight",
			usage: `
              Stack.MaxHeight is the upper limit of random layer heights.`,
			defaultVal: def.MaxHeight,
			flagsets:   buildSets,
		},
		{
			name: "Stack.MinFootprint",
			usage: `
              Stack.MinFootprint is the smallest random layer width and
              depth, as a multiple of Grid.Scale.`,
			defaultVal: def.MinFootprint,
			flagsets:   buildSets,
		},
		{
			name: "Stack.MaxFootprint",
			usage: `
              Stack.MaxFootprint is the upper limit of random layer widths
              and depths, as a multiple of Grid.Scale.`,
			defaultVal: def.MaxFootprint,
			flagsets:   buildSets,
		},
		{
			name: "Stack.Seed",
			usage: `
              Stack.Seed seeds the random layer generator. The same seed and
              inputs give the same terrain. 0 seeds from the clock.`,
			defaultVal: 0,
			flagsets:   buildSets,
		},
		{
			name: "Colors.Start",
			usage: `
              Colors.Start is the layer color of the first grid row.`,
			defaultVal: def.StartColor,
			flagsets:   gridSets,
		},
		{
			name: "Colors.End",
			usage: `
              Colors.End is the layer color of the last grid row.`,
			defaultVal: def.EndColor,
			flagsets:   gridSets,
		},
		{
			name: "Colors.Base",
			usage: `
              Colors.Base is the color of the base tiles.`,
			defaultVal: def.BaseColor,
			flagsets:   gridSets,
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path where the STL file should be written.
              It can be a local path or a blob location.`,
			shorthand:  "o",
			defaultVal: "graffiti_city.stl",
			flagsets:   gridSets,
		},
		{
			name: "ASCII",
			usage: `
              ASCII specifies whether the STL file is written as text. If
              false, it is written in binary form.`,
			defaultVal: true,
			flagsets:   buildSets,
		},
		{
			name: "CellShapefile",
			usage: `
              CellShapefile is an optional path where a polygon shapefile of
              the grid cells holding the OutputVariables should be written.`,
			defaultVal: "",
			flagsets:   gridSets,
		},
		{
			name: "CellSpreadsheet",
			usage: `
              CellSpreadsheet is an optional path where an Excel file of the
              OutputVariables of every non-empty cell should be written.`,
			defaultVal: "",
			flagsets:   gridSets,
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies the fields of the cell outputs as
              a map of names to expressions over the cell variables
              Incidents, Layers, Height, Base, Row, Col, Lon, and Lat.
              The functions exp, sqrt, max, and min are available.`,
			defaultVal: map[string]string{"Incidents": "Incidents", "Height": "Height"},
			flagsets:   gridSets,
		},
		{
			name: "GridCache",
			usage: `
              GridCache is an optional path where the rasterized grid is
              cached. The build command loads the grid from it if it exists
              and creates it otherwise. The grid command always recreates it.`,
			defaultVal: "",
			flagsets:   gridSets,
		},
		{
			name: "Preview.File",
			usage: `
              Preview.File is an optional path where a PNG image of the
              terrain seen from random angles should be written.`,
			shorthand:  "p",
			defaultVal: "",
			flagsets:   buildSets,
		},
		{
			name: "Preview.Rows",
			usage: `
              Preview.Rows is the number of rows of views in the preview.`,
			defaultVal: 2,
			flagsets:   buildSets,
		},
		{
			name: "Preview.Cols",
			usage: `
              Preview.Cols is the number of columns of views in the preview.`,
			defaultVal: 2,
			flagsets:   buildSets,
		},
		{
			name: "Preview.Size",
			usage: `
              Preview.Size is the edge length of each preview view in pixels.`,
			defaultVal: 400,
			flagsets:   buildSets,
		},
		{
			name: "HeightPlot",
			usage: `
              HeightPlot is an optional path where a histogram of stack
              heights should be saved. The format follows the extension
              (for example .png, .svg, or .pdf).`,
			defaultVal: "",
			flagsets:   buildSets,
		},
		{
			name: "PlotBins",
			usage: `
              PlotBins is the number of bins in the HeightPlot histogram.`,
			defaultVal: 20,
			flagsets:   buildSets,
		},
		{
			name: "DownloadDir",
			usage: `
              DownloadDir is the directory where remote inputs are cached.
              If empty, a temporary directory is used.`,
			defaultVal: "",
			flagsets:   gridSets,
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. If empty,
              the log is written next to OutputFile with a .log extension.`,
			defaultVal: "",
			flagsets:   gridSets,
		},
		{
			name: "Verbose",
			usage: `
              Verbose turns on debug logging.`,
			shorthand:  "v",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GRAFFITI")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(v)
				set.StringP(option.name, option.shorthand, strings.TrimSpace(b.String()), option.usage)
			default:
				panic("invalid argument type")
			}
		}
		Cfg.BindPFlag(option.name, option.flagsets[0].Lookup(option.name))
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(buildCmd)
	Root.AddCommand(gridCmd)
	Root.AddCommand(configCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("graffiti: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "graffiti",
	Short: "A generator of 3D-printable graffiti terrains.",
	Long: `Graffiti City turns graffiti incident reports into a 3D-printable terrain.
Incidents are mapped onto a grid laid over a city boundary, and each incident
stacks randomly sized boxes on its grid cell. The result is written as an STL
file. Use the subcommands specified below to access the functionality, or run
the separate graffitiweb program to set the options in a web form.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'GRAFFITI_var' where 'var' is
the name of the variable to be set, with dots replaced by underscores. Many
configuration variables are additionally allowed to contain environment
variables within them.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of Graffiti City.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("Graffiti City v%s\n", graffiti.Version)
	},
	DisableAutoGenTag: true,
}

// buildCmd builds a terrain and writes it to an STL file.
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a terrain",
	Long: `build reads the boundary and incident files, stacks layers on the
incident locations, and writes the resulting mesh to OutputFile, along with
any optional outputs that are configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		return Build(context.Background(), cmd.OutOrStdout(), cfg)
	},
	DisableAutoGenTag: true,
}

// gridCmd creates and saves a rasterized grid.
var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Create a grid",
	Long: `grid rasterizes the boundary onto the grid and saves the result to
GridCache, where future builds can load it from.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		return Grid(context.Background(), cmd.OutOrStdout(), cfg)
	},
	DisableAutoGenTag: true,
}

// configCmd prints the configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the configuration",
	Long: `config prints the configuration that results from the defaults, the
configuration file, the environment, and the command-line arguments, in TOML
format. The output can be used as a configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeConfig(cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}

// writeConfig writes the current configuration to w as TOML, with dotted
// option names grouped into tables.
func writeConfig(w io.Writer) error {
	out := make(map[string]interface{})
	for _, option := range options {
		if option.name == "config" {
			continue
		}
		var val interface{}
		if _, ok := option.defaultVal.(map[string]string); ok {
			m, err := GetStringMapString(option.name, Cfg)
			if err != nil {
				return err
			}
			val = m
		} else {
			val = Cfg.Get(option.name)
		}
		parts := strings.Split(option.name, ".")
		table := out
		for _, p := range parts[:len(parts)-1] {
			sub, ok := table[p].(map[string]interface{})
			if !ok {
				sub = make(map[string]interface{})
				table[p] = sub
			}
			table = sub
		}
		table[parts[len(parts)-1]] = val
	}
	if err := toml.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("graffiti: writing configuration: %v", err)
	}
	return nil
}

// StartWebServer starts a web form for configuring and running the
// commands.
func StartWebServer() {
	setConfig() // Ignore any errors for now.

	for _, cmd := range []*cobra.Command{Root, versionCmd, buildCmd, gridCmd, configCmd} {
		cmd.SilenceUsage = true // We don't want the usage messages in the form.
	}

	const address = "localhost:7272"
	const tmpl = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>Graffiti City</title>
	<style>
		body { margin: 0; padding: 2em 0; background: #f4f1ee; color: #383430; font-family: Helvetica, Arial, sans-serif; }
		.container { max-width: 760px; margin: 0 auto; padding: 0 1em; }
		h1 { color: #4D4844; border-bottom: 4px solid #77706a; }
		div[id^="gobra-"] blockquote { margin: .3em 0 .8em 0; padding-left: .6em; border-left: 3px solid #77706a; font-size: 80%; }
		div[id^="gobra-"] code { font-weight: bold; }
		div[id^="gobra-"] input { width: 55%; margin-left: .3em; font-family: monospace; }
	</style>
</head>
<body>
<div class="container">
	<h1>Graffiti City</h1>
	<p>Set the options of a command and press its button to build a terrain.</p>
	<div>
		{{.}}
	</div>
</div>
</body>
</html>`

	output := template.Must(template.New("").Parse(tmpl))
	server := gobra.Server{Root: Root, ServerAddress: address, AllowCORS: false, HTML: output}
	logrus.Info("server starting")
	open.Run("http://" + address)
	fmt.Println("If not opened automatically, please visit http://" + address)
	server.Start()
}
