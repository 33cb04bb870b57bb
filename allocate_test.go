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
	"math"
	"reflect"
	"testing"

	"github.com/ctessum/unit"
)

func TestAllocate(t *testing.T) {
	ca2020 := GroupKey{Region: "CA", Year: 2020}
	aggregates := []*AggregateRecord{
		{Key: ca2020, Quantity: unit.New(100, unit.Kilogram)},
	}
	sources := []*SourceRecord{
		{Key: ca2020, SourceID: "f1", Weight: 3},
		{Key: ca2020, SourceID: "f2", Weight: 1},
		{Key: ca2020, SourceID: "f3", Weight: 1},
	}
	alloc, err := Allocate(aggregates, sources)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{60, 20, 20}
	if len(alloc.Records) != len(want) {
		t.Fatalf("want %d records, got %d", len(want), len(alloc.Records))
	}
	var sum float64
	for i, rec := range alloc.Records {
		if v := rec.Allocated.Value(); v != want[i] {
			t.Errorf("record %s: want %g, got %g", rec.SourceID, want[i], v)
		}
		sum += rec.Allocated.Value()
	}
	if sum != 100 {
		t.Errorf("allocated sum: want 100, got %g", sum)
	}
	if len(alloc.Degenerate) != 0 || len(alloc.MissingAggregate) != 0 {
		t.Errorf("unexpected anomalies: %v, %v", alloc.Degenerate, alloc.MissingAggregate)
	}
	if !alloc.Dimensions().Matches(unit.Kilogram) {
		t.Errorf("want kilogram dimensions, got %v", alloc.Dimensions())
	}
}

func TestAllocate_zeroWeights(t *testing.T) {
	key := GroupKey{Region: "TX", Year: 2019}
	aggregates := []*AggregateRecord{{Key: key, Quantity: unit.New(42, unit.Kilogram)}}
	sources := []*SourceRecord{
		{Key: key, SourceID: "f1", Weight: 0},
		{Key: key, SourceID: "f2", Weight: 0},
	}
	alloc, err := Allocate(aggregates, sources)
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range alloc.Records {
		v := rec.Allocated.Value()
		if v != 0 || math.IsNaN(v) {
			t.Errorf("record %s: want 0, got %g", rec.SourceID, v)
		}
	}
	if !reflect.DeepEqual(alloc.Degenerate, []GroupKey{key}) {
		t.Errorf("want degenerate group %v, got %v", key, alloc.Degenerate)
	}
}

func TestAllocate_missingAggregate(t *testing.T) {
	key := GroupKey{Region: "IL", Year: 2020}
	sources := []*SourceRecord{
		{Key: key, SourceID: "f1", Weight: 5},
		{Key: key, SourceID: "f2", Weight: 3},
	}
	alloc, err := Allocate([]*AggregateRecord{
		{Key: GroupKey{Region: "CA", Year: 2020}, Quantity: unit.New(1, unit.Kilogram)},
	}, sources)
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range alloc.Records {
		if v := rec.Allocated.Value(); v != 0 {
			t.Errorf("record %s: want 0, got %g", rec.SourceID, v)
		}
	}
	if !reflect.DeepEqual(alloc.MissingAggregate, []GroupKey{key}) {
		t.Errorf("want missing aggregate %v, got %v", key, alloc.MissingAggregate)
	}
}

func TestAllocate_contractViolations(t *testing.T) {
	key := GroupKey{Region: "CA", Year: 2020}
	tests := []struct {
		name       string
		aggregates []*AggregateRecord
		sources    []*SourceRecord
	}{
		{
			name: "negative quantity",
			aggregates: []*AggregateRecord{
				{Key: key, Quantity: unit.New(-1, unit.Kilogram)},
			},
		},
		{
			name: "non-numeric quantity",
			aggregates: []*AggregateRecord{
				{Key: key, Quantity: unit.New(math.NaN(), unit.Kilogram)},
			},
		},
		{
			name: "infinite quantity",
			aggregates: []*AggregateRecord{
				{Key: key, Quantity: unit.New(math.Inf(1), unit.Kilogram)},
			},
		},
		{
			name: "duplicate aggregate",
			aggregates: []*AggregateRecord{
				{Key: key, Quantity: unit.New(1, unit.Kilogram)},
				{Key: key, Quantity: unit.New(2, unit.Kilogram)},
			},
		},
		{
			name: "mismatched units",
			aggregates: []*AggregateRecord{
				{Key: key, Quantity: unit.New(1, unit.Kilogram)},
				{Key: GroupKey{Region: "NY", Year: 2020}, Quantity: unit.New(1, unit.Meter)},
			},
		},
		{
			name: "negative weight",
			aggregates: []*AggregateRecord{
				{Key: key, Quantity: unit.New(1, unit.Kilogram)},
			},
			sources: []*SourceRecord{{Key: key, SourceID: "f1", Weight: -2}},
		},
		{
			name: "infinite weight",
			aggregates: []*AggregateRecord{
				{Key: key, Quantity: unit.New(1, unit.Kilogram)},
			},
			sources: []*SourceRecord{{Key: key, SourceID: "f1", Weight: math.Inf(1)}},
		},
	}
	for _, test := range tests {
		if _, err := Allocate(test.aggregates, test.sources); err == nil {
			t.Errorf("%s: want error, got nil", test.name)
		}
	}
}

func TestAllocate_noSideEffects(t *testing.T) {
	key := GroupKey{Region: "CA", Year: 2020}
	agg := &AggregateRecord{Key: key, Quantity: unit.New(10, unit.Kilogram)}
	src := &SourceRecord{Key: key, SourceID: "f1", Weight: 2}
	if _, err := Allocate([]*AggregateRecord{agg}, []*SourceRecord{src}); err != nil {
		t.Fatal(err)
	}
	if agg.Quantity.Value() != 10 || src.Weight != 2 {
		t.Error("inputs were modified")
	}
}
