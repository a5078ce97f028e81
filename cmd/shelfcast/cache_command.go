package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shelfcast/internal/transcode"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the transcode cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show transcode cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := transcodeCache(ctx)
			if err != nil {
				return err
			}
			stats, err := cache.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Dir:     %s\n", stats.Dir)
			fmt.Fprintf(out, "Entries: %d\n", stats.Entries)
			limit := "unlimited"
			if stats.MaxBytes > 0 {
				limit = humanBytes(stats.MaxBytes)
			}
			fmt.Fprintf(out, "Size:    %s / %s\n", humanBytes(stats.TotalBytes), limit)
			fmt.Fprintf(out, "Disk:    %s free\n", humanize.IBytes(stats.FreeBytes))
			printCacheEntries(out, stats.EntrySummaries)
			return nil
		},
	}
	addJSONFlag(cmd, &jsonOutput, "stats")
	return cmd
}

func printCacheEntries(out io.Writer, entries []transcode.EntrySummary) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Cached conversions: none")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			filepath.Base(entry.Path),
			humanBytes(entry.SizeBytes),
			humanize.Time(entry.ModifiedAt),
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		{header: "File"},
		{header: "Size", align: alignRight},
		{header: "Last used"},
	}, rows, nil))
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	var maxMiB int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Evict least recently used conversions above the size limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cache, err := transcodeCache(ctx)
			if err != nil {
				return err
			}
			limit := cfg.CacheMaxBytes()
			if cmd.Flags().Changed("max-mib") {
				limit = int64(maxMiB) * 1024 * 1024
			}
			removed, err := cache.Prune(cmd.Context(), limit, "")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if removed == 0 {
				fmt.Fprintln(out, "No cache entries pruned")
				return nil
			}
			fmt.Fprintf(out, "Pruned %d entries\n", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxMiB, "max-mib", 0, "Size limit in MiB (defaults to transcode.cache_max_mib)")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached conversion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := transcodeCache(ctx)
			if err != nil {
				return err
			}
			removed, err := cache.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached conversions\n", removed)
			return nil
		},
	}
}

func transcodeCache(ctx *commandContext) (*transcode.Cache, error) {
	engine, err := ctx.transcodeEngine()
	if err != nil {
		return nil, err
	}
	return engine.Cache(), nil
}
