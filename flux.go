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
	"time"

	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
)

// ToFlux converts a mass-per-cell raster into a mass-per-area-per-time
// raster:
//
//	flux[r,c] = mass[r,c] / (cellArea(r,c) * seconds)
//
// The input layer is not modified. period must be positive; for annual
// emissions it should be the exact calendar-year length from YearLength so
// that leap years are handled correctly.
func ToFlux(mass *sparse.DenseArray, grid *GridDef, period time.Duration) (*sparse.DenseArray, error) {
	if len(mass.Shape) != 2 || mass.Shape[0] != grid.Ny || mass.Shape[1] != grid.Nx {
		return nil, fmt.Errorf("gridinv: mass raster shape %v does not match grid shape (%d, %d)",
			mass.Shape, grid.Ny, grid.Nx)
	}
	seconds := period.Seconds()
	if seconds <= 0 {
		return nil, fmt.Errorf("gridinv: invalid flux conversion period %v", period)
	}
	flux := sparse.ZerosDense(grid.Ny, grid.Nx)
	for row := 0; row < grid.Ny; row++ {
		for col := 0; col < grid.Nx; col++ {
			v := mass.Get(row, col)
			if v == 0 {
				continue
			}
			flux.Set(v/(grid.CellArea(row, col)*seconds), row, col)
		}
	}
	return flux, nil
}

// FluxDimensions returns the dimensions of a flux raster derived from a
// mass raster with dimensions massDims.
func FluxDimensions(massDims unit.Dimensions) unit.Dimensions {
	u := unit.Div(unit.New(1, massDims),
		unit.Mul(unit.New(1, unit.Meter2), unit.New(1, unit.Second)))
	return u.Dimensions()
}
