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
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/requestcache"
	"github.com/ctessum/unit"
	"github.com/tealeg/xlsx"

	"github.com/spatialmodel/gridinv"
)

var longlat *proj.SR

func init() {
	var err error
	longlat, err = proj.Parse("+proj=longlat")
	if err != nil {
		panic(err)
	}
}

// excelCache holds previously opened workbooks to avoid reading the same
// file multiple times.
var excelCache *requestcache.Cache

var loadExcelCacheOnce sync.Once

// loadExcelFile loads a workbook from disk, utilizing a cache to avoid
// loading the same file more than once.
func loadExcelFile(fileName string) (*xlsx.File, error) {
	loadExcelCacheOnce.Do(func() {
		excelCache = requestcache.NewCache(func(ctx context.Context, req interface{}) (interface{}, error) {
			filename := req.(string)
			f, err := xlsx.OpenFile(filename)
			if err != nil {
				return nil, fmt.Errorf("gridinvutil: opening xlsx file: %v", err)
			}
			return f, nil
		}, runtime.GOMAXPROCS(-1), requestcache.Memory(100))
	})
	r := excelCache.NewRequest(context.Background(), fileName, fileName)
	fI, err := r.Result()
	if err != nil {
		return nil, err
	}
	return fI.(*xlsx.File), nil
}

// ParseInputUnits returns a function to convert input data values to
// mass quantities for the given input unit. Acceptable values are `kt',
// `tonnes', `kg', and `g'.
func ParseInputUnits(units string) (func(float64) *unit.Unit, error) {
	switch units {
	case "kt":
		return func(v float64) *unit.Unit { return unit.New(v*1.0e6, unit.Kilogram) }, nil
	case "tonnes":
		return func(v float64) *unit.Unit { return unit.New(v*1.0e3, unit.Kilogram) }, nil
	case "kg":
		return func(v float64) *unit.Unit { return unit.New(v, unit.Kilogram) }, nil
	case "g":
		return func(v float64) *unit.Unit { return unit.New(v*1.0e-3, unit.Kilogram) }, nil
	default:
		return nil, fmt.Errorf("gridinvutil: the InputUnits variable needs to be set to "+
			"either kt, tonnes, kg, or g, but is currently set to `%s'", units)
	}
}

// ReadAggregates reads regional aggregate quantities from an inventory
// workbook. The sheet must have a header row whose first column identifies
// the region and whose remaining columns are year labels; header columns
// that are not years are ignored. Inventory placeholder markers ("NO",
// "NE", "NA") and empty cells are read as zero, matching their meaning of
// "not occurring"/"not estimated". Years outside [minYear, maxYear] are
// skipped.
func ReadAggregates(fileName, sheet string, inputConv func(float64) *unit.Unit, minYear, maxYear int) ([]*gridinv.AggregateRecord, error) {
	f, err := loadExcelFile(fileName)
	if err != nil {
		return nil, err
	}
	s, ok := f.Sheet[sheet]
	if !ok {
		return nil, fmt.Errorf("gridinvutil: reading aggregates from %s: no sheet %s", fileName, sheet)
	}
	if len(s.Rows) < 2 {
		return nil, fmt.Errorf("gridinvutil: reading aggregates from %s: sheet %s has no data rows", fileName, sheet)
	}
	header := s.Rows[0]
	years := make(map[int]int) // column index to year
	for i := 1; i < len(header.Cells); i++ {
		year, err := strconv.Atoi(strings.TrimSpace(header.Cells[i].Value))
		if err != nil {
			continue
		}
		if year >= minYear && year <= maxYear {
			years[i] = year
		}
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("gridinvutil: reading aggregates from %s: no year columns within %d--%d",
			fileName, minYear, maxYear)
	}
	var aggregates []*gridinv.AggregateRecord
	for _, row := range s.Rows[1:] {
		if len(row.Cells) == 0 {
			continue
		}
		region := strings.TrimSpace(row.Cells[0].Value)
		if region == "" {
			continue
		}
		for i := 1; i < len(header.Cells); i++ {
			year, ok := years[i]
			if !ok {
				continue
			}
			var v float64
			if i < len(row.Cells) {
				v, err = parseInventoryValue(row.Cells[i].Value)
				if err != nil {
					return nil, fmt.Errorf("gridinvutil: reading aggregates from %s: region %s, year %d: %v",
						fileName, region, year, err)
				}
			}
			aggregates = append(aggregates, &gridinv.AggregateRecord{
				Key:      gridinv.GroupKey{Region: region, Year: year},
				Quantity: inputConv(v),
			})
		}
	}
	return aggregates, nil
}

// parseInventoryValue converts an inventory cell value to a number.
// The markers "NO" (not occurring), "NE" (not estimated), and "NA", as well
// as empty cells, mean zero.
func parseInventoryValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "NO", "NE", "NA":
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// sourceColumns are the required columns in a source table, with the
// accepted aliases for each.
var sourceColumns = map[string][]string{
	"region":    {"region", "state", "state_code"},
	"year":      {"year", "reporting_year"},
	"source_id": {"source_id", "facility_id"},
	"weight":    {"weight", "ghg_quantity", "ch4_kt"},
	"longitude": {"longitude", "lon"},
	"latitude":  {"latitude", "lat"},
}

// ReadSources reads individual source records from a CSV table with
// columns region, year, source id, weight, longitude and latitude (see
// sourceColumns for accepted aliases). Records with empty coordinates keep
// a nil location so the rasterizer can count them. At most one record is
// kept per (source id, year); later records replace earlier ones. Years
// outside [minYear, maxYear] are skipped.
func ReadSources(r io.Reader, minYear, maxYear int) ([]*gridinv.SourceRecord, error) {
	d := csv.NewReader(r)
	d.Comment = '#'
	lines, err := d.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("gridinvutil: reading sources: %v", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("gridinvutil: reading sources: empty table")
	}
	cols := make(map[string]int)
	for i, name := range lines[0] {
		name = strings.ToLower(strings.TrimSpace(name))
		for col, aliases := range sourceColumns {
			for _, alias := range aliases {
				if name == alias {
					cols[col] = i
				}
			}
		}
	}
	for col := range sourceColumns {
		if _, ok := cols[col]; !ok {
			return nil, fmt.Errorf("gridinvutil: reading sources: missing column %s", col)
		}
	}

	var sources []*gridinv.SourceRecord
	seen := make(map[string]int) // (source, year) key to index in sources
	for i, line := range lines[1:] {
		region := strings.TrimSpace(line[cols["region"]])
		id := strings.TrimSpace(line[cols["source_id"]])
		year, err := strconv.Atoi(strings.TrimSpace(line[cols["year"]]))
		if err != nil {
			return nil, fmt.Errorf("gridinvutil: reading sources: record %d: parsing year: %v", i+1, err)
		}
		if year < minYear || year > maxYear {
			continue
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(line[cols["weight"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("gridinvutil: reading sources: record %d: parsing weight: %v", i+1, err)
		}
		rec := &gridinv.SourceRecord{
			Key:      gridinv.GroupKey{Region: region, Year: year},
			SourceID: id,
			Weight:   weight,
		}
		lon := strings.TrimSpace(line[cols["longitude"]])
		lat := strings.TrimSpace(line[cols["latitude"]])
		if lon != "" && lat != "" {
			x, err := strconv.ParseFloat(lon, 64)
			if err != nil {
				return nil, fmt.Errorf("gridinvutil: reading sources: record %d: parsing longitude: %v", i+1, err)
			}
			y, err := strconv.ParseFloat(lat, 64)
			if err != nil {
				return nil, fmt.Errorf("gridinvutil: reading sources: record %d: parsing latitude: %v", i+1, err)
			}
			rec.Loc = &gridinv.Location{Geom: geom.Point{X: x, Y: y}, SR: longlat}
		}
		key := fmt.Sprintf("%s_%d", id, year)
		if j, ok := seen[key]; ok {
			sources[j] = rec
		} else {
			seen[key] = len(sources)
			sources = append(sources, rec)
		}
	}
	return sources, nil
}
