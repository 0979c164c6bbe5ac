package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/packwork/internal/core/defs"
	"github.com/zeusync/packwork/pkg/sequence"
)

// defSummary is one row of the defs listing.
type defSummary struct {
	Name     string  `yaml:"name"`
	Role     string  `yaml:"role"`
	ShortID  uint16  `yaml:"short_id"`
	Builds   string  `yaml:"builds,omitempty"`
	Packed   string  `yaml:"packed,omitempty"`
	Category string  `yaml:"category,omitempty"`
	Mass     float64 `yaml:"mass,omitempty"`
}

func newDefsCmd() *cobra.Command {
	var scenario string
	var packedOnly bool
	cmd := &cobra.Command{
		Use:   "defs",
		Short: "Print the definition table after startup generation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, sc, err := setup(scenario)
			if err != nil {
				return err
			}
			if err = rt.Start(sc); err != nil {
				return err
			}

			listed := sequence.From(rt.Defs.All()).Filter(func(d *defs.Definition) bool {
				return !packedOnly || d.Role == defs.RolePacked
			})
			rows := sequence.Map(listed, summarize).Collect()
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(rows)
		},
	}
	cmd.Flags().StringVarP(&scenario, "scenario", "s", "", "scenario file (.yaml or .json)")
	cmd.Flags().BoolVar(&packedOnly, "packed", false, "only list generated packed definitions")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func summarize(d *defs.Definition) defSummary {
	row := defSummary{Name: d.Name, Role: d.Role.String(), ShortID: d.ShortID, Category: d.Category}
	if d.Builds != nil {
		row.Builds = d.Builds.Name
	}
	if d.PackedForm != nil {
		row.Packed = d.PackedForm.Name
	}
	row.Mass, _ = d.Stat(defs.StatMass)
	return row
}
