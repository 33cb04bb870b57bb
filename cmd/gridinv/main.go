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

// Command gridinv is a command-line interface for allocating and gridding
// emission inventories.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/gridinv/gridinvutil"
)

func main() {
	if err := gridinvutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
