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

	"github.com/ctessum/unit"
)

// An Allocation holds the result of proportionally redistributing aggregate
// quantities across their sources.
type Allocation struct {
	// Records holds one record per input source, in input order.
	Records []*AllocatedRecord

	// Degenerate lists groups in which every source weight was zero.
	// All sources in such a group receive a zero allocation.
	Degenerate []GroupKey

	// MissingAggregate lists groups that have sources but no matching
	// aggregate. Their sources receive a zero allocation.
	MissingAggregate []GroupKey

	units unit.Dimensions
}

// Dimensions returns the mass dimensions shared by the allocated
// quantities.
func (a *Allocation) Dimensions() unit.Dimensions { return a.units }

// Allocate distributes each aggregate quantity across the sources in its
// group in proportion to their weights:
//
//	allocated_i = weight_i / Σ weights * aggregate
//
// Groups whose weights sum to zero allocate zero to every source rather
// than dividing by zero, and groups with sources but no aggregate allocate
// zero and are flagged in the result. Aggregates with no sources produce no
// records; the conservation verifier reports their mass as unallocated.
// Allocate is a pure function: data-quality problems are returned as fields
// of the Allocation, and only contract violations (negative or non-numeric
// quantities and weights, duplicate aggregates, mismatched units) return an
// error.
func Allocate(aggregates []*AggregateRecord, sources []*SourceRecord) (*Allocation, error) {
	a := new(Allocation)

	aggs := make(map[GroupKey]*AggregateRecord, len(aggregates))
	for _, agg := range aggregates {
		if agg.Quantity == nil || math.IsNaN(agg.Quantity.Value()) || math.IsInf(agg.Quantity.Value(), 0) {
			return nil, fmt.Errorf("gridinv: aggregate %v has a non-numeric quantity", agg.Key)
		}
		if agg.Quantity.Value() < 0 {
			return nil, fmt.Errorf("gridinv: aggregate %v has negative quantity %g",
				agg.Key, agg.Quantity.Value())
		}
		if a.units == nil {
			a.units = agg.Quantity.Dimensions()
		} else if !a.units.Matches(agg.Quantity.Dimensions()) {
			return nil, fmt.Errorf("gridinv: aggregate %v units '%v' do not match '%v'",
				agg.Key, agg.Quantity.Dimensions(), a.units)
		}
		if _, ok := aggs[agg.Key]; ok {
			return nil, fmt.Errorf("gridinv: duplicate aggregate for group %v", agg.Key)
		}
		aggs[agg.Key] = agg
	}

	weightSums := make(map[GroupKey]float64)
	for _, src := range sources {
		if src.Weight < 0 || math.IsNaN(src.Weight) || math.IsInf(src.Weight, 0) {
			return nil, fmt.Errorf("gridinv: source %s has invalid weight %g",
				src.RecordKey(), src.Weight)
		}
		weightSums[src.Key] += src.Weight
	}

	a.Records = make([]*AllocatedRecord, 0, len(sources))
	flagged := make(map[GroupKey]bool)
	for _, src := range sources {
		agg, ok := aggs[src.Key]
		if !ok {
			if !flagged[src.Key] {
				a.MissingAggregate = append(a.MissingAggregate, src.Key)
				flagged[src.Key] = true
			}
			a.Records = append(a.Records, &AllocatedRecord{
				SourceRecord: src,
				Allocated:    unit.New(0, a.units),
			})
			continue
		}
		sum := weightSums[src.Key]
		if sum == 0 {
			if !flagged[src.Key] {
				a.Degenerate = append(a.Degenerate, src.Key)
				flagged[src.Key] = true
			}
			a.Records = append(a.Records, &AllocatedRecord{
				SourceRecord: src,
				Allocated:    unit.New(0, a.units),
			})
			continue
		}
		a.Records = append(a.Records, &AllocatedRecord{
			SourceRecord: src,
			Allocated:    unit.Mul(agg.Quantity, unit.New(src.Weight/sum, unit.Dimless)),
		})
	}
	return a, nil
}

// YearTotals returns the total allocated mass for each year.
func (a *Allocation) YearTotals() map[int]float64 {
	totals := make(map[int]float64)
	for _, rec := range a.Records {
		totals[rec.Key.Year] += rec.Allocated.Value()
	}
	return totals
}

// GroupTotals returns the total allocated mass for each group.
func (a *Allocation) GroupTotals() map[GroupKey]float64 {
	totals := make(map[GroupKey]float64)
	for _, rec := range a.Records {
		totals[rec.Key] += rec.Allocated.Value()
	}
	return totals
}
