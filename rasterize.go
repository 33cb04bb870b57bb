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

package gridinv

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
)

// A RasterSet holds one mass raster per year, plus an accounting of the
// records that could not be placed on the grid.
type RasterSet struct {
	Grid *GridDef

	// Layers maps each year to its mass-per-cell raster, with shape
	// (Grid.Ny, Grid.Nx). Layers are frozen once Rasterize returns.
	Layers map[int]*sparse.DenseArray

	// OutOfGrid counts the records in each year whose geometry was
	// missing, invalid, or (partly or entirely) outside the grid extent.
	OutOfGrid map[int]int

	// OutOfGridMass is the allocated mass in each year that was excluded
	// from the raster because of missing or out-of-extent geometry,
	// including the off-grid fraction of partially covered polygons.
	OutOfGridMass map[int]float64

	units unit.Dimensions
}

// Dimensions returns the mass dimensions of the raster cell values.
func (rs *RasterSet) Dimensions() unit.Dimensions { return rs.units }

// lossTol is the relative tolerance separating real off-grid mass from
// floating-point noise in polygon overlap fractions.
const lossTol = 1.0e-9

// Rasterize accumulates the allocated records onto the grid, one raster
// layer per year. Records landing in the same cell sum, so the result is
// invariant to record order. Point geometries are assigned to their
// enclosing cell; polygon geometries are spread across the cells they
// intersect in proportion to overlap area. Mass that cannot be placed on the
// grid, whether from records with missing or unsupported geometry, records
// outside the grid extent, or the off-grid portion of polygons straddling
// the grid edge, is left out of the sums and counted in the result.
func Rasterize(records []*AllocatedRecord, grid *GridDef) (*RasterSet, error) {
	rs := &RasterSet{
		Grid:          grid,
		Layers:        make(map[int]*sparse.DenseArray),
		OutOfGrid:     make(map[int]int),
		OutOfGridMass: make(map[int]float64),
	}
	for _, rec := range records {
		if rec.Allocated == nil {
			return nil, fmt.Errorf("gridinv: record %s has no allocated quantity", rec.RecordKey())
		}
		if rs.units == nil {
			rs.units = rec.Allocated.Dimensions()
		} else if !rs.units.Matches(rec.Allocated.Dimensions()) {
			return nil, fmt.Errorf("gridinv: record %s units '%v' do not match '%v'",
				rec.RecordKey(), rec.Allocated.Dimensions(), rs.units)
		}
		year := rec.Key.Year
		layer, ok := rs.Layers[year]
		if !ok {
			layer = sparse.ZerosDense(grid.Ny, grid.Nx)
			rs.Layers[year] = layer
		}
		added, err := burn(layer, grid, rec)
		if err != nil {
			return nil, err
		}
		v := rec.Allocated.Value()
		if v != 0 {
			// Polygons straddling the grid edge leave part of their mass
			// off the grid; that part counts too, not just records that
			// miss the grid entirely.
			if lost := v - added; lost > lossTol*v {
				rs.OutOfGrid[year]++
				rs.OutOfGridMass[year] += lost
			}
		} else if !inGrid(grid, rec) {
			// Zero-mass records with bad geometry still count.
			rs.OutOfGrid[year]++
		}
	}
	return rs, nil
}

// burn adds the record's allocated mass into the cells its geometry covers,
// returning the portion of the mass that landed on the grid.
func burn(layer *sparse.DenseArray, grid *GridDef, rec *AllocatedRecord) (float64, error) {
	loc := rec.Location()
	if loc == nil || loc.Geom == nil {
		return 0, nil
	}
	g, err := loc.Reproject(grid.SR)
	if err != nil {
		return 0, err
	}
	v := rec.Allocated.Value()
	switch gg := g.(type) {
	case geom.Point:
		row, col, within := grid.Index(gg)
		if !within {
			return 0, nil
		}
		layer.AddVal(v, row, col)
		return v, nil
	case geom.Polygonal:
		area := gg.Area()
		if area <= 0 {
			return 0, nil
		}
		var added float64
		for _, cell := range grid.overlapping(gg) {
			isect := gg.Intersection(cell.Polygonal)
			if isect == nil {
				continue
			}
			frac := isect.Area() / area
			if frac <= 0 {
				continue
			}
			layer.AddVal(v*frac, cell.Row, cell.Col)
			added += v * frac
		}
		return added, nil
	default:
		// Unsupported geometry types are treated as invalid.
		return 0, nil
	}
}

// inGrid reports whether the record has geometry that lands on the grid.
// It is only consulted for zero-mass records, where the amount burned
// cannot distinguish in-grid from out-of-grid.
func inGrid(grid *GridDef, rec *AllocatedRecord) bool {
	loc := rec.Location()
	if loc == nil || loc.Geom == nil {
		return false
	}
	g, err := loc.Reproject(grid.SR)
	if err != nil {
		return false
	}
	switch gg := g.(type) {
	case geom.Point:
		_, _, within := grid.Index(gg)
		return within
	case geom.Polygonal:
		for _, cell := range grid.overlapping(gg) {
			isect := gg.Intersection(cell.Polygonal)
			if isect != nil && isect.Area() > 0 {
				return true
			}
		}
		return false
	default:
		return false
	}
}
