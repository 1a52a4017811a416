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
	"context"
	"fmt"
	"io"
	"os"
	"time"

	graffiti "github.com/floraaa826/Graffiti-City"
	"github.com/sirupsen/logrus"
)

// newLogger returns a logger that writes to out and to the file at
// logFile. The returned function closes the log file.
func newLogger(out io.Writer, logFile string, verbose bool) (*logrus.Logger, func() error, error) {
	f, err := os.Create(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("graffiti: problem creating log file: %v", err)
	}
	logger := logrus.New()
	logger.Out = io.MultiWriter(out, f)
	logger.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableSorting:  true,
	}
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger, f.Close, nil
}

// gridFuncs returns the functions that create the rasterized grid, either
// by loading it from cfg.GridCache or by reading the boundary. If rebuild
// is true the cache is never loaded. When the grid is created and
// cfg.GridCache is set, the grid is saved there before gaps are filled, so
// that a changed Grid.FillGaps applies on the next run. The returned
// function closes any open cache file.
func gridFuncs(ctx context.Context, cfg *ConfigData, dl *downloader, log logrus.FieldLogger, rebuild bool) ([]graffiti.DomainManipulator, func() error, error) {
	noop := func() error { return nil }
	if cfg.GridCache != "" && !rebuild {
		if f, err := os.Open(cfg.GridCache); err == nil {
			log.WithField("file", cfg.GridCache).Info("loading grid from cache")
			return []graffiti.DomainManipulator{
				graffiti.Load(f, cfg.Grid),
				graffiti.FillGaps(),
			}, f.Close, nil
		}
	}
	boundaryFile, err := dl.maybeDownload(ctx, cfg.BoundaryFile)
	if err != nil {
		return nil, nil, err
	}
	boundary, err := graffiti.ReadBoundary(boundaryFile, cfg.Boundary)
	if err != nil {
		return nil, nil, err
	}
	funcs := []graffiti.DomainManipulator{
		cfg.Grid.RegularGrid(boundary),
		graffiti.Rasterize(),
	}
	closeCache := noop
	if cfg.GridCache != "" {
		w, err := os.Create(cfg.GridCache)
		if err != nil {
			return nil, nil, fmt.Errorf("graffiti: problem creating grid cache file: %v", err)
		}
		funcs = append(funcs, graffiti.Save(w))
		closeCache = w.Close
	}
	return append(funcs, graffiti.FillGaps()), closeCache, nil
}

// cellOutputFuncs returns the functions that write the optional cell
// shapefile and spreadsheet.
func cellOutputFuncs(cfg *ConfigData, up *uploader) ([]graffiti.DomainManipulator, error) {
	if cfg.CellShapefile == "" && cfg.CellSpreadsheet == "" {
		return nil, nil
	}
	o, err := graffiti.NewOutputter(up.maybeUpload(cfg.CellShapefile), cfg.OutputVariables, nil)
	if err != nil {
		return nil, err
	}
	funcs := []graffiti.DomainManipulator{o.CheckOutputVars()}
	if cfg.CellShapefile != "" {
		funcs = append(funcs, o.Output())
	}
	if cfg.CellSpreadsheet != "" {
		funcs = append(funcs, o.Spreadsheet(up.maybeUpload(cfg.CellSpreadsheet)))
	}
	return funcs, nil
}

// Build runs the full pipeline: it creates or loads the grid, stacks
// layers on the incident locations, builds the mesh and writes the STL
// file and any other requested outputs. Log messages are written to out
// and to cfg.LogFile.
func Build(ctx context.Context, out io.Writer, cfg *ConfigData) error {
	startTime := time.Now()
	var up uploader

	logger, closeLog, err := newLogger(out, up.maybeUpload(cfg.LogFile), cfg.Verbose)
	if err != nil {
		return err
	}
	defer closeLog()

	dl, err := newDownloader(cfg.DownloadDir, logger)
	if err != nil {
		return err
	}

	funcs, closeGrid, err := gridFuncs(ctx, cfg, dl, logger, false)
	if err != nil {
		return err
	}
	defer closeGrid()

	incidentsFile, err := dl.maybeDownload(ctx, cfg.IncidentsFile)
	if err != nil {
		return err
	}
	incidents, err := graffiti.ReadIncidents(incidentsFile)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"incidents": len(incidents.Points),
		"skipped":   incidents.Skipped,
	}).Info("read incidents")

	funcs = append(funcs,
		graffiti.AddIncidents(incidents.Points, graffiti.NewRand(cfg.Grid.Seed)),
		graffiti.BuildMesh(),
	)
	outFuncs, err := cellOutputFuncs(cfg, &up)
	if err != nil {
		return err
	}
	funcs = append(funcs, outFuncs...)

	t := &graffiti.Terrain{InitFuncs: funcs, Log: logger}
	if err := t.Init(); err != nil {
		return err
	}

	stl, err := os.Create(up.maybeUpload(cfg.OutputFile))
	if err != nil {
		return fmt.Errorf("graffiti: problem creating output file: %v", err)
	}
	if err := t.WriteSTL(stl, cfg.ASCII); err != nil {
		stl.Close()
		return err
	}
	if err := stl.Close(); err != nil {
		return fmt.Errorf("graffiti: problem closing output file: %v", err)
	}
	logger.WithField("file", cfg.OutputFile).Info("wrote STL")

	if cfg.PreviewFile != "" {
		if err := t.SavePreview(up.maybeUpload(cfg.PreviewFile), cfg.Preview); err != nil {
			return err
		}
	}
	if cfg.HeightPlot != "" {
		if err := t.SaveHeightPlot(up.maybeUpload(cfg.HeightPlot), cfg.PlotBins); err != nil {
			logger.WithError(err).Warn("skipping height plot")
		}
	}

	logger.WithFields(t.Summarize().Fields()).Info("summary")
	logger.Infof("finished in %v", time.Since(startTime))
	if err := closeLog(); err != nil {
		return err
	}
	return up.upload(ctx)
}

// Grid creates the rasterized grid and saves it to cfg.GridCache, and
// writes the cell outputs if they are requested.
func Grid(ctx context.Context, out io.Writer, cfg *ConfigData) error {
	if cfg.GridCache == "" {
		return fmt.Errorf("graffiti: GridCache must be specified to create a grid")
	}
	var up uploader
	logger, closeLog, err := newLogger(out, up.maybeUpload(cfg.LogFile), cfg.Verbose)
	if err != nil {
		return err
	}
	defer closeLog()

	dl, err := newDownloader(cfg.DownloadDir, logger)
	if err != nil {
		return err
	}
	funcs, closeGrid, err := gridFuncs(ctx, cfg, dl, logger, true)
	if err != nil {
		return err
	}
	defer closeGrid()
	outFuncs, err := cellOutputFuncs(cfg, &up)
	if err != nil {
		return err
	}
	funcs = append(funcs, outFuncs...)

	t := &graffiti.Terrain{InitFuncs: funcs, Log: logger}
	if err := t.Init(); err != nil {
		return err
	}
	if err := closeGrid(); err != nil {
		return fmt.Errorf("graffiti: problem closing grid cache file: %v", err)
	}
	logger.WithFields(t.Summarize().Fields()).Info("summary")
	logger.WithField("file", cfg.GridCache).Info("grid successfully created")
	if err := closeLog(); err != nil {
		return err
	}
	return up.upload(ctx)
}
