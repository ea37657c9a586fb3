package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Phlares/wow-arena-analysis/internal/adapters/tables"
)

func newTablesCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Print the location and match type tables in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig(cmd)
			if err != nil {
				return err
			}
			tbl, err := loadTables(cfg)
			if err != nil {
				return fmt.Errorf("load tables: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderLocations(tbl))
			fmt.Fprintln(out, renderMatchTypes(tbl))
			return nil
		},
	}
}

func renderLocations(tbl *tables.Tables) string {
	locs := tbl.Locations()
	rows := make([][]string, 0, len(locs))
	for _, l := range locs {
		rows = append(rows, []string{l.ID, l.Name, strings.Join(l.Aliases, ", ")})
	}
	return renderTable([]string{"ID", "Arena", "Aliases"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft})
}

func renderMatchTypes(tbl *tables.Tables) string {
	types := tbl.MatchTypes()
	rows := make([][]string, 0, len(types))
	for _, mt := range types {
		rounds := "1"
		if mt.MultiRound {
			rounds = strconv.Itoa(mt.Rounds)
		}
		rows = append(rows, []string{
			mt.Name,
			strings.Join(mt.Labels, ", "),
			strings.Join(mt.Accepts, ", "),
			rounds,
		})
	}
	return renderTable([]string{"Match type", "Labels", "Also accepts", "Rounds"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
}
