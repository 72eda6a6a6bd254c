package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"docentgo/pkg/claim"
	"docentgo/pkg/db/maintenance"
)

func newThemesCmd(e *env) *cobra.Command {
	var withItems bool
	cmd := &cobra.Command{
		Use:   "themes",
		Short: "List the themes served by the content service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := e.contentClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			themes := c.GetThemes(ctx)
			if len(themes) == 0 {
				return fmt.Errorf("no themes from %s", c.URL("/api/themes"))
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tITEMS\tQUIZZES")
			for _, th := range themes {
				items := c.GetItems(ctx, th.ID)
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", th.ID, th.Title, len(items), len(c.GetQuizzes(ctx, th.ID)))
				if withItems {
					for _, it := range items {
						fmt.Fprintf(tw, "  %s\t%s\t\t\n", it.ID, it.Name)
					}
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVarP(&withItems, "items", "i", false, "list the items of every theme")
	return cmd
}

func newProbeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "probe [PATH]",
		Short:   "Show the raw answer of the content service for PATH",
		Example: "docentctl probe /api/themes",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.contentClient()
			if err != nil {
				return err
			}
			path := "/api/themes"
			if len(args) == 1 {
				path = args[0]
			}
			res := c.Probe(cmd.Context(), path)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.OK {
				return fmt.Errorf("probe failed: %d %s", res.Status, res.StatusText)
			}
			return nil
		},
	}
}

func newExportCmd(e *env) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the prize-claim log as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := e.openStore()
			if err != nil {
				return err
			}
			subs, err := st.ListSubmissions(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read submissions: %w", err)
			}
			if outDir == "-" {
				return claim.WriteCSV(cmd.OutOrStdout(), subs)
			}

			path := filepath.Join(outDir, claim.ExportFilename(time.Now()))
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create export: %w", err)
			}
			if err := claim.WriteCSV(f, subs); err != nil {
				f.Close()
				return fmt.Errorf("failed to write export: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d submissions to %s\n", len(subs), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", `output directory, or "-" for stdout`)
	return cmd
}

func newOverridesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "Manage per-item video pins",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pinned videos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := e.openStore()
			if err != nil {
				return err
			}
			m, err := st.ListOverrides(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ITEM\tURL")
			for _, id := range slices.Sorted(maps.Keys(m)) {
				fmt.Fprintf(tw, "%s\t%s\n", id, m[id])
			}
			return tw.Flush()
		},
	}, &cobra.Command{
		Use:   "set ITEM URL",
		Short: "Pin a video to an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.openStore()
			if err != nil {
				return err
			}
			return st.SetOverride(cmd.Context(), args[0], args[1])
		},
	}, &cobra.Command{
		Use:   "delete ITEM",
		Short: "Remove an item's pin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.openStore()
			if err != nil {
				return err
			}
			return st.DeleteOverride(cmd.Context(), args[0])
		},
	}, &cobra.Command{
		Use:   "import CSV",
		Short: "Load item_id,url rows; an empty url removes the pin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.openStore()
			if err != nil {
				return err
			}
			n, err := maintenance.ImportOverrides(cmd.Context(), st, args[0], true)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rows\n", n)
			return nil
		},
	})
	return cmd
}
