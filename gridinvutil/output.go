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
	"fmt"
	"os"
	"strings"

	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	goshp "github.com/jonas-p/go-shp"

	"github.com/spatialmodel/gridinv"
)

// WriteAllocatedShp writes allocated source records to a point shapefile
// for quality-assurance inspection. Records without a location are skipped.
// fileName should end in `.shp'; any existing shapefile with the same name
// is replaced.
func WriteAllocatedShp(records []*gridinv.AllocatedRecord, sr *proj.SR, fileName string) error {
	base := strings.TrimSuffix(fileName, ".shp")
	for _, ext := range []string{".shp", ".prj", ".dbf", ".shx"} {
		os.Remove(base + ext)
	}
	fields := []goshp.Field{
		goshp.StringField("region", 10),
		goshp.NumberField("year", 10),
		goshp.StringField("source", 40),
		goshp.FloatField("weight", 20, 6),
		goshp.FloatField("alloc", 20, 6),
	}
	e, err := shp.NewEncoderFromFields(base+".shp", goshp.POINT, fields...)
	if err != nil {
		return fmt.Errorf("gridinvutil: creating shapefile %s: %v", fileName, err)
	}
	for _, rec := range records {
		loc := rec.Location()
		if loc == nil {
			continue
		}
		l, err := loc.Reproject(sr)
		if err != nil {
			e.Close()
			return fmt.Errorf("gridinvutil: writing shapefile %s: %v", fileName, err)
		}
		data := []interface{}{rec.Key.Region, rec.Key.Year, rec.SourceID,
			rec.Weight, rec.Allocated.Value()}
		if err := e.EncodeFields(l, data...); err != nil {
			e.Close()
			return fmt.Errorf("gridinvutil: writing shapefile %s: %v", fileName, err)
		}
	}
	e.Close()
	return nil
}
