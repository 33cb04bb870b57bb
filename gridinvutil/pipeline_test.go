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
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/spatialmodel/gridinv"
)

const pipelineSourceCSV = `facility_id,state,year,ch4_kt,longitude,latitude
f1,CA,2019,3,-121.5,36.5
f1,CA,2020,3,-121.5,36.5
f2,CA,2020,1,-120.5,37.5
f3,WY,2019,1,-120.25,36.75
f3,WY,2020,1,-120.25,36.75
`

// pipelineConfig writes a small inventory to dir and returns a
// configuration describing it on a 2x2 one-degree grid.
func pipelineConfig(t *testing.T, dir string) *Config {
	sourceFile := filepath.Join(dir, "sources.csv")
	if err := ioutil.WriteFile(sourceFile, []byte(pipelineSourceCSV), 0644); err != nil {
		t.Fatal(err)
	}
	return &Config{
		GridName:       "test",
		GridXo:         -122,
		GridYo:         36,
		GridDx:         1,
		GridDy:         1,
		GridNx:         2,
		GridNy:         2,
		GridSR:         "+proj=longlat",
		AggregateFile:  writeTestWorkbook(t, dir),
		AggregateSheet: "InvDB",
		SourceFile:     sourceFile,
		InputUnits:     "kt",
		MinYear:        2019,
		MaxYear:        2020,
	}
}

func TestRun(t *testing.T) {
	dir, err := ioutil.TempDir("", "gridinv")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	c := pipelineConfig(t, dir)
	c.StrictConservation = true
	c.OutputShapefile = filepath.Join(dir, "allocated.shp")

	out, err := Run(c)
	if err != nil {
		t.Fatal(err)
	}

	if !out.Report.Conserved() {
		t.Errorf("mass should be conserved:\n%v", out.Report.GroupTable())
	}

	// CA 2020 (20 kt) splits 3:1 between f1 and f2; WY 2020 (5 kt) all
	// goes to f3.
	mass := out.Rasters.Layers[2020]
	wantCells := []struct {
		row, col int
		kg       float64
	}{
		{0, 0, 1.5e7}, // f1
		{1, 1, 5.0e6}, // f2
		{0, 1, 5.0e6}, // f3
		{1, 0, 0},
	}
	for _, w := range wantCells {
		if v := mass.Get(w.row, w.col); v != w.kg {
			t.Errorf("2020 mass in cell (%d, %d): want %g, got %g", w.row, w.col, w.kg, v)
		}
	}
	if sum := out.Rasters.Layers[2019].Sum(); sum != 1.0e7 {
		t.Errorf("2019 gridded mass: want 1e7, got %g", sum)
	}

	// Multiplying flux back out by cell area and year length recovers
	// the cell mass.
	seconds := gridinv.YearLength(2020).Seconds()
	for _, w := range wantCells {
		v := out.Flux[2020].Get(w.row, w.col) * out.Grid.CellArea(w.row, w.col) * seconds
		if math.Abs(v-w.kg) > 1.0e-6*(w.kg+1) {
			t.Errorf("flux round trip in cell (%d, %d): want %g, got %g", w.row, w.col, w.kg, v)
		}
	}

	for _, ext := range []string{".shp", ".dbf", ".shx"} {
		f := filepath.Join(dir, "allocated"+ext)
		if _, err := os.Stat(f); err != nil {
			t.Errorf("expected QA shapefile component %s: %v", f, err)
		}
	}
}

func TestRun_strictConservation(t *testing.T) {
	dir, err := ioutil.TempDir("", "gridinv")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	c := pipelineConfig(t, dir)

	// Shrink the grid so f2 and f3 fall outside it.
	c.GridNx = 1

	out, err := Run(c)
	if err != nil {
		t.Fatal(err)
	}
	if out.Report.Conserved() {
		t.Error("mass should not be conserved with sources off the grid")
	}
	if n := out.Rasters.OutOfGrid[2020]; n != 2 {
		t.Errorf("want 2 out-of-grid records in 2020, got %d", n)
	}

	c.StrictConservation = true
	if _, err := Run(c); err == nil {
		t.Error("want strict conservation error, got nil")
	}
}
