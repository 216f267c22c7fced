package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a question about an HTML file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		showSources, _ := cmd.Flags().GetBool("sources")

		p, err := buildPack(cmd.Context(), cfg, file)
		if err != nil {
			return err
		}
		res, err := p.Run(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, res.Response)
		if showSources {
			fmt.Fprintln(out)
			for _, sn := range res.SourceNodes {
				fmt.Fprintf(out, "%s\t%s\t%.4f\n", sn.Node.ID, sn.Node.Kind, sn.Score)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringP("file", "f", "", "HTML file to query")
	queryCmd.Flags().Bool("sources", false, "print the source nodes of the answer")
}
