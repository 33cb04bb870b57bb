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

	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spatialmodel/gridinv"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to gridinv.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "GridName",
			usage: `
              GridName is the name used for output and QA files.`,
			defaultVal: "grid",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "GridXo",
			usage: `
              GridXo specifies the X coordinate of the lower-left corner of
              the output grid, in the units of the grid spatial projection.`,
			defaultVal: -130.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "GridYo",
			usage: `
              GridYo specifies the Y coordinate of the lower-left corner of
              the output grid.`,
			defaultVal: 20.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "GridDx",
			usage: `
              GridDx specifies the X edge lengths of grid cells, in the
              units of the grid spatial projection--typically meters or
              degrees latitude and longitude.`,
			defaultVal: 0.1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "GridDy",
			usage: `
              GridDy specifies the Y edge lengths of grid cells.`,
			defaultVal: 0.1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "GridNx",
			usage: `
              GridNx specifies the number of grid cells in the X direction.`,
			defaultVal: 700,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "GridNy",
			usage: `
              GridNy specifies the number of grid cells in the Y direction.`,
			defaultVal: 350,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "GridSR",
			usage: `
              GridSR specifies the grid spatial reference as a PROJ4 string.`,
			defaultVal: "+proj=longlat",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "EarthRadius",
			usage: `
              EarthRadius specifies the radius in meters of the sphere used
              when calculating the areas of latitude-longitude grid cells.
              Zero means the default authalic radius.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "AggregateFile",
			usage: `
              AggregateFile is the path to the workbook holding the regional
              aggregate inventory. The path can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "AggregateSheet",
			usage: `
              AggregateSheet is the name of the workbook sheet holding the
              aggregate inventory.`,
			defaultVal: "InvDB",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SourceFile",
			usage: `
              SourceFile is the path to the CSV table of individual sources.
              The path can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "InputUnits",
			usage: `
              InputUnits gives the units of the aggregate inventory values.
              Acceptable values are 'kt', 'tonnes', 'kg', and 'g'.`,
			defaultVal: "kt",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MinYear",
			usage: `
              MinYear is the first inventory year (inclusive) to process.`,
			defaultVal: 2012,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MaxYear",
			usage: `
              MaxYear is the last inventory year (inclusive) to process.`,
			defaultVal: 2022,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputShapefile",
			usage: `
              OutputShapefile is the path where a QA shapefile of allocated
              sources will be written. Empty means no shapefile is written.
              The path can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ConservationTol",
			usage: `
              ConservationTol is the relative tolerance used when checking
              that mass was conserved. Zero means the default tolerance.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "StrictConservation",
			usage: `
              StrictConservation specifies whether a failed conservation
              check should cause the run to halt with an error instead of
              only being reported.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GRIDINV")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(gridCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("gridinv: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "gridinv",
	Short: "An emission inventory allocation and gridding tool.",
	Long: `gridinv allocates regional aggregate emission inventories across
individual emission sources and grids the result onto a regular grid.
Use the subcommands specified below to access the functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'GRIDINV_var' where 'var' is
the name of the variable to be set. Many configuration variables are
additionally allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of gridinv.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gridinv v%s\n", gridinv.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd allocates, grids, and verifies an inventory.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Allocate and grid an inventory.",
	Long: `run reads the aggregate inventory and source table specified in the
configuration, allocates the aggregate quantities across the sources in
proportion to their weights, grids the allocated quantities, converts them
to flux, and checks that mass was conserved. The conservation report is
printed to standard output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		out, err := Run(c)
		if err != nil {
			return err
		}
		if _, err := out.Report.GroupTable().Tabbed(os.Stdout); err != nil {
			return err
		}
		_, err = out.Report.PeriodTable().Tabbed(os.Stdout)
		return err
	},
	DisableAutoGenTag: true,
}

// gridCmd writes the grid definition to a shapefile.
var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Write the grid to a shapefile",
	Long: `grid creates the grid specified by the configuration and saves it to
a shapefile in the current directory for inspection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := LoadGridConfig(Cfg)
		if err != nil {
			return err
		}
		grid, err := c.Grid()
		if err != nil {
			return err
		}
		return grid.WriteToShp(".")
	},
	DisableAutoGenTag: true,
}
