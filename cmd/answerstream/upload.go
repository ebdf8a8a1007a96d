package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/answerstream/pkg/documents"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file...]",
	Short: "Upload documents for retrieval-backed answers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := documents.NewClient(appCfg.BaseURL, nil)
		for _, path := range args {
			doc, err := client.Upload(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks (id %s)\n",
				doc.Filename, doc.TotalChunks, doc.DocumentID)
		}
		return nil
	},
}
