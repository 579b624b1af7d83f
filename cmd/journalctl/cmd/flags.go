package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/journal-monitor/backend/internal/errors"
	"github.com/journal-monitor/backend/internal/models"
	"github.com/journal-monitor/backend/internal/output"
	"github.com/journal-monitor/backend/internal/status"
)

// flagReport is the decoded form of a status flag mask.
type flagReport struct {
	Mask     int64           `json:"mask"`
	ShipType models.ShipType `json:"shipType"`
	Flags    []models.UIKind `json:"flags"`
}

func (r flagReport) Table(wide bool) output.Data {
	d := output.Data{Headers: []string{"flag", "group"}}
	groups := []status.Group{status.GroupShip, status.GroupSRV, status.GroupUniversal}
	for _, g := range groups {
		for _, kind := range status.FlagsSet(r.Mask, g) {
			d.Rows = append(d.Rows, []string{string(kind), g.String()})
		}
	}
	return d
}

func newFlagsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "flags <mask>",
		Short: "List the flags set in a status flag mask",
		Example: `  journalctl flags 16842765
  journalctl flags 0x01000001`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mask, err := strconv.ParseInt(args[0], 0, 64)
			if err != nil {
				return errors.NewValidationError("mask", args[0], "must be an integer")
			}
			flagsSet := status.AllFlagsSet(mask)
			if flagsSet == nil {
				flagsSet = []models.UIKind{}
			}
			return render(cmd, flags, flagReport{
				Mask:     mask,
				ShipType: status.ShipTypeOf(mask),
				Flags:    flagsSet,
			})
		},
	}
}
