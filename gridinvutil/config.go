/*
Copyright © 2024 the gridinv authors.
This file is part of gridinv.

gridinv is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridinv is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridinv.  If not, see <http://www.gnu.org/licenses/>.*/

// Package gridinvutil holds the collaborators around the gridinv engine:
// configuration, table ingestion, QA export, and the pipeline runner used
// by the command-line interface.
package gridinvutil

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
	"github.com/lnashier/viper"

	"github.com/spatialmodel/gridinv"
)

// Config holds the information needed for one allocation and gridding run.
type Config struct {
	// GridName is used in the names of output and QA files.
	GridName string

	// GridXo, GridYo is the lower left corner of the grid, and
	// GridDx, GridDy are the cell sizes, in the units of GridSR.
	GridXo, GridYo float64
	GridDx, GridDy float64

	// GridNx, GridNy are the numbers of columns and rows.
	GridNx, GridNy int

	// GridSR is the spatial reference of the grid in Proj4 format,
	// for example "+proj=longlat".
	GridSR string

	// EarthRadius is the radius (in meters) used when computing spherical
	// cell areas for geographic grids.
	EarthRadius float64

	// AggregateFile is the workbook holding the regional inventory
	// totals, and AggregateSheet is the sheet within it.
	AggregateFile  string
	AggregateSheet string

	// SourceFile is the CSV file holding individual source records.
	SourceFile string

	// InputUnits specifies the mass units of input data. Acceptable
	// values are `kt', `tonnes', `kg', and `g'.
	InputUnits string

	// MinYear and MaxYear bound the analysis years (inclusive).
	MinYear, MaxYear int

	// OutputShapefile is where allocated source records are written for
	// QA. If empty, no shapefile is written.
	OutputShapefile string

	// ConservationTol is the relative tolerance used when checking that
	// mass was conserved. Zero means the default tolerance.
	ConservationTol float64

	// StrictConservation indicates whether a conservation failure should
	// halt the pipeline instead of being logged.
	StrictConservation bool
}

// LoadConfig reads the run configuration from cfg and validates it,
// including the inventory input files a full run needs. For commands that
// only need the grid geometry, use LoadGridConfig.
func LoadConfig(cfg *viper.Viper) (*Config, error) {
	c := loadConfig(cfg)
	return c, c.check()
}

// LoadGridConfig reads the configuration from cfg, validating only the
// grid geometry.
func LoadGridConfig(cfg *viper.Viper) (*Config, error) {
	c := loadConfig(cfg)
	return c, c.checkGrid()
}

func loadConfig(cfg *viper.Viper) *Config {
	return &Config{
		GridName:           cfg.GetString("GridName"),
		GridXo:             cfg.GetFloat64("GridXo"),
		GridYo:             cfg.GetFloat64("GridYo"),
		GridDx:             cfg.GetFloat64("GridDx"),
		GridDy:             cfg.GetFloat64("GridDy"),
		GridNx:             cfg.GetInt("GridNx"),
		GridNy:             cfg.GetInt("GridNy"),
		GridSR:             os.ExpandEnv(cfg.GetString("GridSR")),
		EarthRadius:        cfg.GetFloat64("EarthRadius"),
		AggregateFile:      os.ExpandEnv(cfg.GetString("AggregateFile")),
		AggregateSheet:     cfg.GetString("AggregateSheet"),
		SourceFile:         os.ExpandEnv(cfg.GetString("SourceFile")),
		InputUnits:         cfg.GetString("InputUnits"),
		MinYear:            cfg.GetInt("MinYear"),
		MaxYear:            cfg.GetInt("MaxYear"),
		OutputShapefile:    os.ExpandEnv(cfg.GetString("OutputShapefile")),
		ConservationTol:    cfg.GetFloat64("ConservationTol"),
		StrictConservation: cfg.GetBool("StrictConservation"),
	}
}

// checkGrid validates the grid geometry settings.
func (c *Config) checkGrid() error {
	if c.GridNx <= 0 || c.GridNy <= 0 {
		return fmt.Errorf("gridinv: GridNx and GridNy must be positive; they are %d and %d",
			c.GridNx, c.GridNy)
	}
	if c.GridDx <= 0 || c.GridDy <= 0 {
		return fmt.Errorf("gridinv: GridDx and GridDy must be positive; they are %g and %g",
			c.GridDx, c.GridDy)
	}
	if _, err := proj.Parse(c.GridSR); err != nil {
		return fmt.Errorf("gridinv: parsing GridSR: %v", err)
	}
	return nil
}

func (c *Config) check() error {
	if err := c.checkGrid(); err != nil {
		return err
	}
	if c.MinYear > c.MaxYear {
		return fmt.Errorf("gridinv: MinYear %d is after MaxYear %d", c.MinYear, c.MaxYear)
	}
	if c.AggregateFile == "" {
		return fmt.Errorf("gridinv: an AggregateFile configuration variable needs to be specified")
	}
	if c.SourceFile == "" {
		return fmt.Errorf("gridinv: a SourceFile configuration variable needs to be specified")
	}
	if c.ConservationTol < 0 {
		return fmt.Errorf("gridinv: ConservationTol must not be negative; it is %g", c.ConservationTol)
	}
	if _, err := ParseInputUnits(c.InputUnits); err != nil {
		return err
	}
	return nil
}

// Grid constructs the grid described by the receiver. For geographic grids
// a table of spherical cell areas is attached; projected grids use their
// planar cell areas.
func (c *Config) Grid() (*gridinv.GridDef, error) {
	sr, err := proj.Parse(c.GridSR)
	if err != nil {
		return nil, fmt.Errorf("gridinv: parsing GridSR: %v", err)
	}
	grid := gridinv.NewGridRegular(c.GridName, c.GridNx, c.GridNy,
		c.GridDx, c.GridDy, c.GridXo, c.GridYo, sr)
	if strings.Contains(c.GridSR, "longlat") {
		r := c.EarthRadius
		if r == 0 {
			r = defaultEarthRadius
		}
		if err := grid.SetCellAreas(latLonCellAreas(c.GridNx, c.GridNy,
			c.GridDx, c.GridDy, c.GridYo, r)); err != nil {
			return nil, err
		}
	}
	return grid, nil
}

// defaultEarthRadius is the authalic Earth radius in meters.
const defaultEarthRadius = 6371007.2

// latLonCellAreas returns the spherical surface area in square meters of
// each cell in a regular longitude-latitude grid. Within one row all cells
// have the same area.
func latLonCellAreas(nx, ny int, dx, dy, y0, r float64) *sparse.DenseArray {
	const degToRad = math.Pi / 180
	areas := sparse.ZerosDense(ny, nx)
	for iy := 0; iy < ny; iy++ {
		y := y0 + float64(iy)*dy
		a := r * r * dx * degToRad *
			(math.Sin((y+dy)*degToRad) - math.Sin(y*degToRad))
		for ix := 0; ix < nx; ix++ {
			areas.Set(a, iy, ix)
		}
	}
	return areas
}
