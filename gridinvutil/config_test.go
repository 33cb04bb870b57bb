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
	"math"
	"strings"
	"testing"

	"github.com/lnashier/viper"
)

func testConfigViper() *viper.Viper {
	cfg := viper.New()
	cfg.Set("GridName", "conus")
	cfg.Set("GridXo", -130.0)
	cfg.Set("GridYo", 20.0)
	cfg.Set("GridDx", 0.1)
	cfg.Set("GridDy", 0.1)
	cfg.Set("GridNx", 700)
	cfg.Set("GridNy", 350)
	cfg.Set("GridSR", "+proj=longlat")
	cfg.Set("AggregateFile", "testdata/inventory.xlsx")
	cfg.Set("AggregateSheet", "InvDB")
	cfg.Set("SourceFile", "testdata/sources.csv")
	cfg.Set("InputUnits", "kt")
	cfg.Set("MinYear", 2012)
	cfg.Set("MaxYear", 2022)
	return cfg
}

func TestLoadConfig(t *testing.T) {
	c, err := LoadConfig(testConfigViper())
	if err != nil {
		t.Fatal(err)
	}
	if c.GridName != "conus" {
		t.Errorf("GridName: want conus, got %s", c.GridName)
	}
	if c.GridNx != 700 || c.GridNy != 350 {
		t.Errorf("grid dimensions: want 700x350, got %dx%d", c.GridNx, c.GridNy)
	}
	if c.MinYear != 2012 || c.MaxYear != 2022 {
		t.Errorf("years: want 2012--2022, got %d--%d", c.MinYear, c.MaxYear)
	}
}

func TestLoadConfig_errors(t *testing.T) {
	tests := []struct {
		name, key string
		val       interface{}
		errSubstr string
	}{
		{"badNx", "GridNx", 0, "GridNx"},
		{"badDx", "GridDx", -1.0, "GridDx"},
		{"badYears", "MinYear", 2030, "MinYear"},
		{"noAggregate", "AggregateFile", "", "AggregateFile"},
		{"noSources", "SourceFile", "", "SourceFile"},
		{"badUnits", "InputUnits", "lbs", "InputUnits"},
		{"badSR", "GridSR", "not a projection", "GridSR"},
	}
	for _, test := range tests {
		cfg := testConfigViper()
		cfg.Set(test.key, test.val)
		if _, err := LoadConfig(cfg); err == nil {
			t.Errorf("%s: want error, got nil", test.name)
		} else if !strings.Contains(err.Error(), test.errSubstr) {
			t.Errorf("%s: error %v does not mention %s", test.name, err, test.errSubstr)
		}
	}
}

func TestLoadGridConfig(t *testing.T) {
	// Grid QA export needs no inventory files, so only the grid geometry
	// is validated.
	cfg := viper.New()
	cfg.Set("GridName", "qa")
	cfg.Set("GridXo", 0.0)
	cfg.Set("GridYo", 0.0)
	cfg.Set("GridDx", 1.0)
	cfg.Set("GridDy", 1.0)
	cfg.Set("GridNx", 2)
	cfg.Set("GridNy", 2)
	cfg.Set("GridSR", "+proj=longlat")
	c, err := LoadGridConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Grid(); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(cfg); err == nil {
		t.Error("full run validation should still require inventory files")
	}
	cfg.Set("GridNx", 0)
	if _, err := LoadGridConfig(cfg); err == nil {
		t.Error("want error for non-positive GridNx, got nil")
	}
}

func TestConfigGrid(t *testing.T) {
	c, err := LoadConfig(testConfigViper())
	if err != nil {
		t.Fatal(err)
	}
	grid, err := c.Grid()
	if err != nil {
		t.Fatal(err)
	}
	if len(grid.Cells) != 700*350 {
		t.Fatalf("want %d cells, got %d", 700*350, len(grid.Cells))
	}
	// Spherical areas shrink moving away from the equator.
	if a0, a1 := grid.CellArea(0, 0), grid.CellArea(c.GridNy-1, 0); a1 >= a0 {
		t.Errorf("cell areas should decrease northward from 20N: "+
			"row 0 %g, row %d %g", a0, c.GridNy-1, a1)
	}
	// A 0.1 degree cell at these latitudes is on the order of 100 km².
	if a := grid.CellArea(0, 0); a < 5.0e7 || a > 2.0e8 {
		t.Errorf("cell area %g m² is implausible", a)
	}
}

func TestLatLonCellAreas(t *testing.T) {
	const r = defaultEarthRadius
	// A grid covering the whole sphere should have a total area of 4πr².
	areas := latLonCellAreas(36, 18, 10, 10, -90, r)
	want := 4 * math.Pi * r * r
	if have := areas.Sum(); math.Abs(have-want)/want > 1.0e-10 {
		t.Errorf("total area: want %g, got %g", want, have)
	}
	// Northern and southern hemispheres are symmetric.
	for iy := 0; iy < 9; iy++ {
		n := areas.Get(17-iy, 0)
		s := areas.Get(iy, 0)
		if math.Abs(n-s)/s > 1.0e-10 {
			t.Errorf("row %d: area %g does not match mirror row area %g", iy, s, n)
		}
	}
}
