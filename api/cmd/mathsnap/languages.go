package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mathsnap/api/internal/translate"
)

func languagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List answer languages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Answer languages"))
			for _, l := range translate.Languages() {
				fmt.Fprintf(out, "  %-4s %s\n", l.Code, l.Name)
			}
			fmt.Fprintln(out, mutedStyle.Render("Only pt has an offline phrasebook; others need the gemini translator."))
			return nil
		},
	}
}
