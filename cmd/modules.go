package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Build the pipeline for an HTML file and list its modules",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		p, err := buildPack(cmd.Context(), cfg, file)
		if err != nil {
			return err
		}
		info := modulesResponse(p)

		out := cmd.OutOrStdout()
		for _, name := range info.Modules {
			fmt.Fprintf(out, "%s\t%T\n", name, p.Modules()[name])
		}
		fmt.Fprintf(out, "\nnodes: %d, base nodes: %d, tables: %d\n", info.Nodes, info.BaseNodes, info.Tables)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modulesCmd)
	modulesCmd.Flags().StringP("file", "f", "", "HTML file to parse")
}
