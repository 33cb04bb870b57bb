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
	"io"
	"sort"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
)

// Default tolerances for deciding whether two mass totals match.
const (
	DefaultRelTol = 1.0e-6
	DefaultAbsTol = 1.0e-9
)

// GroupStatus classifies the conservation result for one group.
type GroupStatus int

const (
	// OK indicates that the allocated total reconstructs the aggregate
	// within tolerance.
	OK GroupStatus = iota

	// MissingSources indicates an aggregate with no sources; its mass is
	// unallocated.
	MissingSources

	// ExtraSources indicates sources with no matching aggregate.
	ExtraSources

	// Mismatch indicates that the allocated total differs from the
	// aggregate beyond tolerance.
	Mismatch
)

func (s GroupStatus) String() string {
	switch s {
	case OK:
		return "OK"
	case MissingSources:
		return "MISSING_SOURCES"
	case ExtraSources:
		return "EXTRA_SOURCES"
	case Mismatch:
		return "MISMATCH"
	default:
		panic(fmt.Sprintf("unknown group status: %d", int(s)))
	}
}

// A GroupCheck compares one group's allocated total against its aggregate.
type GroupCheck struct {
	Key    GroupKey
	Status GroupStatus

	// Aggregate is the authoritative quantity for the group; Allocated is
	// the sum over its allocated sources. Diff is Allocated - Aggregate.
	Aggregate, Allocated, Diff float64
}

// A PeriodCheck compares one year's raster total against the allocated
// total for that year. A failure indicates a rasterization problem, most
// commonly geometries falling outside the grid extent.
type PeriodCheck struct {
	Year int

	// Allocated is the summed allocation for the year; Gridded is the sum
	// over the year's raster cells. Diff is Gridded - Allocated.
	Allocated, Gridded, Diff float64

	// OutOfGrid is the number of records excluded from the raster.
	OutOfGrid int

	OK bool
}

// A ConservationReport describes every conservation anomaly found in an
// allocation and its rasterization. It is data, not an error: the caller
// decides whether to halt or continue.
type ConservationReport struct {
	// Groups holds one entry per group, ordered by region and year.
	Groups []GroupCheck

	// Periods holds one entry per year, in ascending order. It is empty
	// when no raster set was supplied.
	Periods []PeriodCheck

	// Degenerate is the number of groups in which every weight was zero.
	Degenerate int
}

// Verify checks conservation of mass with the default tolerances.
func Verify(aggregates []*AggregateRecord, alloc *Allocation, rasters *RasterSet) *ConservationReport {
	return VerifyTolerance(aggregates, alloc, rasters, DefaultAbsTol, DefaultRelTol)
}

// VerifyTolerance checks, for every group, that the sum of allocated
// quantities reconstructs the aggregate quantity, and, for every year, that
// the raster sum reconstructs the allocated sum. rasters may be nil to
// verify the allocation alone. Totals a and b are considered equal when
// |a-b| <= max(absTol, relTol*max(|a|,|b|)).
func VerifyTolerance(aggregates []*AggregateRecord, alloc *Allocation, rasters *RasterSet, absTol, relTol float64) *ConservationReport {
	r := &ConservationReport{Degenerate: len(alloc.Degenerate)}

	groupTotals := alloc.GroupTotals()
	for _, agg := range aggregates {
		c := GroupCheck{Key: agg.Key, Aggregate: agg.Quantity.Value()}
		allocated, ok := groupTotals[agg.Key]
		if !ok && c.Aggregate > 0 {
			c.Status = MissingSources
		} else {
			c.Allocated = allocated
			if !floats.EqualWithinAbsOrRel(allocated, c.Aggregate, absTol, relTol) {
				c.Status = Mismatch
			}
		}
		c.Diff = c.Allocated - c.Aggregate
		r.Groups = append(r.Groups, c)
	}
	for _, key := range alloc.MissingAggregate {
		r.Groups = append(r.Groups, GroupCheck{
			Key:       key,
			Status:    ExtraSources,
			Allocated: groupTotals[key],
			Diff:      groupTotals[key],
		})
	}
	sort.Slice(r.Groups, func(i, j int) bool {
		gi, gj := r.Groups[i].Key, r.Groups[j].Key
		if gi.Region != gj.Region {
			return gi.Region < gj.Region
		}
		return gi.Year < gj.Year
	})

	if rasters != nil {
		yearTotals := alloc.YearTotals()
		years := make(map[int]bool)
		for year := range yearTotals {
			years[year] = true
		}
		for year := range rasters.Layers {
			years[year] = true
		}
		for year := range years {
			c := PeriodCheck{
				Year:      year,
				Allocated: yearTotals[year],
				OutOfGrid: rasters.OutOfGrid[year],
			}
			if layer, ok := rasters.Layers[year]; ok {
				c.Gridded = layer.Sum()
			}
			c.Diff = c.Gridded - c.Allocated
			c.OK = floats.EqualWithinAbsOrRel(c.Gridded, c.Allocated, absTol, relTol)
			r.Periods = append(r.Periods, c)
		}
		sort.Slice(r.Periods, func(i, j int) bool { return r.Periods[i].Year < r.Periods[j].Year })
	}
	return r
}

// Conserved reports whether every group and period check passed.
func (r *ConservationReport) Conserved() bool {
	for _, g := range r.Groups {
		if g.Status != OK {
			return false
		}
	}
	for _, p := range r.Periods {
		if !p.OK {
			return false
		}
	}
	return true
}

// UnallocatedMass returns the total aggregate mass that could not be
// attributed to any source.
func (r *ConservationReport) UnallocatedMass() float64 {
	var m float64
	for _, g := range r.Groups {
		if g.Status == MissingSources {
			m += g.Aggregate
		}
	}
	return m
}

// A Table holds a text representation of report data.
type Table [][]string

// Tabbed creates a tab-separated table.
func (t Table) Tabbed(w io.Writer) (n int, err error) {
	ww := new(tabwriter.Writer)
	ww.Init(w, 0, 2, 0, '\t', 0)
	var nn int
	for _, l := range t {
		for _, r := range l {
			nn, err = fmt.Fprint(ww, r+"\t")
			if err != nil {
				return
			}
			n += nn
		}
		nn, err = fmt.Fprint(ww, "\n")
		if err != nil {
			return
		}
		n += nn
	}
	err = ww.Flush()
	return
}

// GroupTable returns a table of the per-group conservation checks.
func (r *ConservationReport) GroupTable() Table {
	t := Table{{"Group", "Status", "Aggregate", "Allocated", "Diff"}}
	for _, g := range r.Groups {
		t = append(t, []string{g.Key.String(), g.Status.String(),
			fmt.Sprintf("%g", g.Aggregate), fmt.Sprintf("%g", g.Allocated),
			fmt.Sprintf("%g", g.Diff)})
	}
	return t
}

// PeriodTable returns a table of the per-year rasterization checks.
func (r *ConservationReport) PeriodTable() Table {
	t := Table{{"Year", "Allocated", "Gridded", "Diff", "OutOfGrid", "OK"}}
	for _, p := range r.Periods {
		t = append(t, []string{fmt.Sprintf("%d", p.Year),
			fmt.Sprintf("%g", p.Allocated), fmt.Sprintf("%g", p.Gridded),
			fmt.Sprintf("%g", p.Diff), fmt.Sprintf("%d", p.OutOfGrid),
			fmt.Sprintf("%v", p.OK)})
	}
	return t
}
