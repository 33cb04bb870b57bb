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
	"math"
	"os"
	"path/filepath"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
	goshp "github.com/jonas-p/go-shp"
)

// GridDef specifies the grid that we are allocating the emissions to.
// Row indices increase with y and column indices increase with x, so for a
// geographic grid row 0 is the southernmost row. A GridDef must be treated
// as immutable for the duration of a run.
type GridDef struct {
	Name   string
	Nx, Ny int
	Dx, Dy float64
	X0, Y0 float64
	SR     *proj.SR
	Extent geom.Polygon
	Cells  []*GridCell

	areas *sparse.DenseArray
	rtree *rtree.Rtree
}

// GridCell defines an individual cell in a grid.
type GridCell struct {
	geom.Polygonal
	Row, Col int
}

// NewGridRegular creates a new regular grid, where all grid cells are the
// same size.
func NewGridRegular(name string, nx, ny int, dx, dy, x0, y0 float64, sr *proj.SR) *GridDef {
	grid := &GridDef{
		Name: name,
		Nx:   nx, Ny: ny,
		Dx: dx, Dy: dy,
		X0: x0, Y0: y0,
		SR:    sr,
		rtree: rtree.NewTree(25, 50),
	}
	grid.Cells = make([]*GridCell, 0, nx*ny)
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			x := x0 + float64(ix)*dx
			y := y0 + float64(iy)*dy
			cell := &GridCell{
				Row: iy, Col: ix,
				Polygonal: geom.Polygon([]geom.Path{{
					{X: x, Y: y}, {X: x + dx, Y: y},
					{X: x + dx, Y: y + dy}, {X: x, Y: y + dy}, {X: x, Y: y}}}),
			}
			grid.rtree.Insert(cell)
			grid.Cells = append(grid.Cells, cell)
		}
	}
	grid.Extent = geom.Polygon([]geom.Path{{{X: x0, Y: y0},
		{X: x0 + dx*float64(nx), Y: y0},
		{X: x0 + dx*float64(nx), Y: y0 + dy*float64(ny)},
		{X: x0, Y: y0 + dy*float64(ny)}, {X: x0, Y: y0}}})
	return grid
}

// SetCellAreas attaches a table of cell surface areas to the grid, replacing
// the default planar geometric areas. The array shape must be (Ny, Nx).
func (grid *GridDef) SetCellAreas(areas *sparse.DenseArray) error {
	if len(areas.Shape) != 2 || areas.Shape[0] != grid.Ny || areas.Shape[1] != grid.Nx {
		return fmt.Errorf("gridinv: cell area shape %v does not match grid shape (%d, %d)",
			areas.Shape, grid.Ny, grid.Nx)
	}
	grid.areas = areas
	return nil
}

// CellArea returns the surface area of the cell at (row, col). If no area
// table has been set, the planar area of the cell geometry is returned.
func (grid *GridDef) CellArea(row, col int) float64 {
	if grid.areas != nil {
		return grid.areas.Get(row, col)
	}
	return grid.Cells[row*grid.Nx+col].Polygonal.Area()
}

// Index returns the row and column indices of point p in the grid.
// withinGrid is false if p is not within the grid. Cells are treated as
// half-open intervals, so a point on a shared cell edge belongs to exactly
// one cell and mass is never counted twice.
func (grid *GridDef) Index(p geom.Point) (row, col int, withinGrid bool) {
	col = int(math.Floor((p.X - grid.X0) / grid.Dx))
	row = int(math.Floor((p.Y - grid.Y0) / grid.Dy))
	if col < 0 || col >= grid.Nx || row < 0 || row >= grid.Ny {
		return 0, 0, false
	}
	return row, col, true
}

// overlapping returns the grid cells whose bounds intersect the bounds of g.
func (grid *GridDef) overlapping(g geom.Geom) []*GridCell {
	var cells []*GridCell
	for _, cI := range grid.rtree.SearchIntersect(g.Bounds()) {
		cells = append(cells, cI.(*GridCell))
	}
	return cells
}

// WriteToShp writes the grid definition to a shapefile in directory outdir.
func (grid *GridDef) WriteToShp(outdir string) error {
	var err error
	for _, ext := range []string{".shp", ".prj", ".dbf", ".shx"} {
		os.Remove(filepath.Join(outdir, grid.Name+ext))
	}
	fields := make([]goshp.Field, 3)
	fields[0] = goshp.NumberField("row", 10)
	fields[1] = goshp.NumberField("col", 10)
	fields[2] = goshp.FloatField("area", 20, 6)
	var shpf *shp.Encoder
	shpf, err = shp.NewEncoderFromFields(filepath.Join(outdir, grid.Name+".shp"),
		goshp.POLYGON, fields...)
	if err != nil {
		return err
	}
	for _, cell := range grid.Cells {
		data := []interface{}{cell.Row, cell.Col, grid.CellArea(cell.Row, cell.Col)}
		err = shpf.EncodeFields(cell.Polygonal, data...)
		if err != nil {
			return err
		}
	}
	shpf.Close()
	return nil
}
