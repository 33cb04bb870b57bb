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

package gridinvutil

import (
	"fmt"
	"os"
	"sort"

	"github.com/ctessum/sparse"
	log "github.com/sirupsen/logrus"

	"github.com/spatialmodel/gridinv"
)

// RunOutput holds the results of a complete allocation and gridding run.
type RunOutput struct {
	// Grid is the grid the inventory was allocated to.
	Grid *gridinv.GridDef

	// Allocation holds the per-source allocated quantities.
	Allocation *gridinv.Allocation

	// Rasters holds the gridded mass for each year.
	Rasters *gridinv.RasterSet

	// Flux holds, for each year, the gridded mass divided by cell area
	// and year length.
	Flux map[int]*sparse.DenseArray

	// Report holds the conservation check results.
	Report *gridinv.ConservationReport
}

// Run allocates the aggregate inventory specified by c across its sources,
// grids the result, converts it to flux, and verifies that mass was
// conserved. If c.StrictConservation is set, an error is returned when any
// check in the conservation report fails.
func Run(c *Config) (*RunOutput, error) {
	inputConv, err := ParseInputUnits(c.InputUnits)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"file":  c.AggregateFile,
		"sheet": c.AggregateSheet,
	}).Info("reading aggregate inventory")
	aggregates, err := ReadAggregates(c.AggregateFile, c.AggregateSheet, inputConv, c.MinYear, c.MaxYear)
	if err != nil {
		return nil, err
	}

	log.WithField("file", c.SourceFile).Info("reading sources")
	f, err := os.Open(c.SourceFile)
	if err != nil {
		return nil, fmt.Errorf("gridinvutil: opening source file: %v", err)
	}
	sources, err := ReadSources(f, c.MinYear, c.MaxYear)
	f.Close()
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"aggregates": len(aggregates),
		"sources":    len(sources),
	}).Info("finished reading inventory")

	grid, err := c.Grid()
	if err != nil {
		return nil, err
	}

	alloc, err := gridinv.Allocate(aggregates, sources)
	if err != nil {
		return nil, err
	}
	for _, key := range alloc.Degenerate {
		log.WithField("group", key.String()).Warn("group has no positive weight; allocating zero")
	}
	for _, key := range alloc.MissingAggregate {
		log.WithField("group", key.String()).Warn("sources have no matching aggregate")
	}

	rasters, err := gridinv.Rasterize(alloc.Records, grid)
	if err != nil {
		return nil, err
	}
	for _, year := range rasterYears(rasters) {
		log.WithFields(log.Fields{
			"year":      year,
			"mass":      rasters.Layers[year].Sum(),
			"outOfGrid": rasters.OutOfGrid[year],
		}).Info("gridded year")
	}

	flux := make(map[int]*sparse.DenseArray)
	for year, mass := range rasters.Layers {
		flux[year], err = gridinv.ToFlux(mass, grid, gridinv.YearLength(year))
		if err != nil {
			return nil, err
		}
	}

	relTol := c.ConservationTol
	if relTol == 0 {
		relTol = gridinv.DefaultRelTol
	}
	report := gridinv.VerifyTolerance(aggregates, alloc, rasters, gridinv.DefaultAbsTol, relTol)
	if c.StrictConservation && !report.Conserved() {
		var failed int
		for _, g := range report.Groups {
			if g.Status != gridinv.OK {
				failed++
			}
		}
		for _, p := range report.Periods {
			if !p.OK {
				failed++
			}
		}
		return nil, fmt.Errorf("gridinvutil: mass was not conserved: %d checks failed, "+
			"%g kg unallocated (run without StrictConservation for the full report)",
			failed, report.UnallocatedMass())
	}

	if c.OutputShapefile != "" {
		log.WithField("file", c.OutputShapefile).Info("writing allocated sources")
		if err := WriteAllocatedShp(alloc.Records, grid.SR, c.OutputShapefile); err != nil {
			return nil, err
		}
	}

	return &RunOutput{
		Grid:       grid,
		Allocation: alloc,
		Rasters:    rasters,
		Flux:       flux,
		Report:     report,
	}, nil
}

func rasterYears(r *gridinv.RasterSet) []int {
	var years []int
	for year := range r.Layers {
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}
