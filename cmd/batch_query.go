/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kart-io/logger"
	"github.com/spf13/cobra"
	"github.com/tieubaoca/tables-retriever/database"
	"github.com/tieubaoca/tables-retriever/service"
	"github.com/tieubaoca/tables-retriever/utils"
)

// batchQueryCmd asks the same question of every HTML file in a directory.
var batchQueryCmd = &cobra.Command{
	Use:   "batch-query [question]",
	Short: "Ask one question of every HTML file in a directory",
	Long: `Builds a pipeline for each HTML file under --directory, one after the
other, and prints the answer for each. The vector store is cleared before
each file so answers never mix sources.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		directory, _ := cmd.Flags().GetString("directory")
		question := strings.Join(args, " ")

		files, err := os.ReadDir(directory)
		if err != nil {
			return fmt.Errorf("failed to read directory: %w", err)
		}

		provider, err := service.NewProvider(ctx, cfg.LLM)
		if err != nil {
			return err
		}
		store, err := database.NewVectorStore(ctx, cfg.VectorStore)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, file := range files {
			if file.IsDir() || !utils.IsHTMLFile(file.Name()) {
				continue
			}
			filePath := filepath.Join(directory, file.Name())

			p, err := buildPackWithStore(ctx, cfg, filePath, provider, store)
			if err != nil {
				logger.Errorw("failed to build pipeline", "file", filePath, "error", err.Error())
				failed++
				continue
			}
			res, err := p.Run(ctx, question)
			if err != nil {
				logger.Errorw("query failed", "file", filePath, "error", err.Error())
				failed++
				continue
			}
			fmt.Fprintf(out, "== %s\n%s\n\n", utils.GetFileNameWithoutExt(file.Name()), res.Response)
		}
		if failed > 0 {
			return fmt.Errorf("%d file(s) failed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchQueryCmd)
	batchQueryCmd.Flags().StringP("directory", "d", ".", "directory of HTML files")
}
