package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mathsnap/api/internal/render"
	"mathsnap/api/internal/util"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and edit the stored history of --owner",
	}
	cmd.AddCommand(historyListCmd(), historyShowCmd(), historyDeleteCmd(), historyClearCmd())
	return cmd
}

func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func historyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List solved problems, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app) error {
				recs, err := a.repo.List(cmd.Context(), owner)
				if err != nil {
					return fmt.Errorf("failed to load history: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(recs) == 0 {
					fmt.Fprintln(out, mutedStyle.Render("No problem history"))
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				defer func() {
					if err := w.Flush(); err != nil {
						slog.Error("failed to flush table writer", "error", err)
					}
				}()
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					headerStyle.Render("ID"), headerStyle.Render("When"),
					headerStyle.Render("Problem"), headerStyle.Render("Solution"))
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					strings.Repeat("─", 14), strings.Repeat("─", 16), strings.Repeat("─", 24), strings.Repeat("─", 20))
				for _, r := range recs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						r.ID, r.CreatedAt().Local().Format("2006-01-02 15:04"),
						util.Truncate(r.ProblemText, 40), util.Truncate(r.SolutionText, 40))
				}
				return nil
			})
		},
	}
}

func historyShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one solved problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				rec, err := a.repo.Get(cmd.Context(), owner, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch format {
				case "markdown", "md":
					fmt.Fprint(out, render.RecordMarkdown(rec))
				case "html":
					html, err := render.RecordHTML(rec)
					if err != nil {
						return err
					}
					fmt.Fprint(out, html)
				default:
					printRecord(out, rec)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, markdown, html")
	return cmd
}

func historyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete one solved problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				removed, err := a.repo.Delete(cmd.Context(), owner, args[0])
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No problem with id "+args[0]))
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Deleted "+args[0])
				return nil
			})
		},
	}
}

func historyClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all solved problems",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				fmt.Fprint(cmd.OutOrStdout(), "Are you sure you want to clear all history? [y/N] ")
				var answer string
				_, _ = fmt.Fscanln(os.Stdin, &answer)
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}
			return withApp(cmd, func(a *app) error {
				if err := a.repo.Clear(cmd.Context(), owner); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
