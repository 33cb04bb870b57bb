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

// Package gridinv allocates regional inventory totals to individual emission
// sources and grids the result. Each aggregate quantity, identified by a
// region and year, is split across the sources in that group in proportion
// to a proxy weight, the allocated values are accumulated onto a regular
// grid, and grid-cell mass is converted to flux. A conservation report
// verifies that the gridded output reconstructs the original totals.
package gridinv

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/unit"
)

// Version is the gridinv version number.
const Version = "0.1.0"

// GroupKey identifies the aggregate quantity for one region and time
// period, for example one state and year.
type GroupKey struct {
	// Region is a region identifier such as a two-letter state code.
	Region string

	// Year is the emissions year.
	Year int
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%d", k.Region, k.Year)
}

// Location holds the geometry of an emissions source and the spatial
// reference system its coordinates are given in.
type Location struct {
	geom.Geom
	SR *proj.SR
}

// Reproject returns the location geometry transformed to the spatial
// reference sr.
func (l *Location) Reproject(sr *proj.SR) (geom.Geom, error) {
	ct, err := l.SR.NewTransform(sr)
	if err != nil {
		return nil, err
	}
	return l.Geom.Transform(ct)
}

// An AggregateRecord holds the authoritative total quantity for one group,
// typically taken from a regional inventory.
type AggregateRecord struct {
	Key GroupKey

	// Quantity is the total mass to be distributed across the group's
	// sources. It must be non-negative.
	Quantity *unit.Unit
}

// A SourceRecord holds one individual emitter (a facility or other spatial
// proxy) contributing to a group aggregate.
type SourceRecord struct {
	Key GroupKey

	// SourceID identifies the source, for example a facility ID. There
	// should be at most one record per (SourceID, Year).
	SourceID string

	// Weight is the proxy activity metric used to split the group
	// aggregate proportionally. It is never used directly as output.
	Weight float64

	// Loc is the source geometry. A nil Loc or nil geometry marks a
	// source with an unknown location; such sources still receive an
	// allocation but are excluded (and counted) during rasterization.
	Loc *Location
}

// Location returns the location of the emissions source.
func (r *SourceRecord) Location() *Location { return r.Loc }

// RecordKey returns a unique key for this record.
func (r *SourceRecord) RecordKey() string {
	return fmt.Sprintf("%s_%s", r.Key, r.SourceID)
}

// An AllocatedRecord is a SourceRecord together with its share of the group
// aggregate. It is derived data: it can always be reconstructed from the
// aggregate and source tables and is never authoritative.
type AllocatedRecord struct {
	*SourceRecord

	// Allocated is the portion of the group aggregate assigned to this
	// source.
	Allocated *unit.Unit
}
