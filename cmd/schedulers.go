// schedulers.go - Auflistung der Scheduler-Varianten.
package cmd

import (
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/latentforge/latentforge/api"
	"github.com/latentforge/latentforge/diffusion"
)

func newSchedulersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedulers",
		Short: "List available schedulers",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := localSchedulers()
			if client, err := api.ClientFromEnvironment(); err == nil {
				if remote, err := client.Schedulers(cmd.Context()); err == nil {
					infos = remote
				}
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"NAME", "ORDER"})
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")
			for _, info := range infos {
				table.Append([]string{info.Name, strconv.Itoa(info.Order)})
			}
			table.Render()
			return nil
		},
	}
}

func localSchedulers() []api.SchedulerInfo {
	infos := make([]api.SchedulerInfo, 0, 2)
	for _, kind := range diffusion.SchedulerKinds() {
		order := 4
		if kind == diffusion.SchedulerDPMSolverPP {
			order = 2
		}
		infos = append(infos, api.SchedulerInfo{Name: string(kind), Order: order})
	}
	return infos
}
