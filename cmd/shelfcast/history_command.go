package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shelfcast/internal/queue"
	"shelfcast/internal/transfer"
)

// historyRecorder persists terminal transfer snapshots in the ledger.
type historyRecorder struct {
	store *queue.Store
}

func (r historyRecorder) Record(ctx context.Context, snap transfer.Snapshot) error {
	return r.store.Record(ctx, jobRecord(snap))
}

func jobRecord(snap transfer.Snapshot) queue.JobRecord {
	return queue.JobRecord{
		JobID:      snap.JobID,
		BookID:     snap.BookID,
		Title:      snap.Title,
		Status:     queue.Status(snap.Status),
		FilesTotal: len(snap.Files),
		FilesDone:  snap.FilesDone(),
		Error:      snap.Error,
		CreatedAt:  snap.EnqueuedAt,
		FinishedAt: snap.FinishedAt,
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit      int
		bookID     string
		status     string
		clearAll   bool
		olderThan  time.Duration
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show finished transfer jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				switch {
				case clearAll:
					removed, err := store.Clear(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Removed %d history records\n", removed)
					return nil
				case olderThan > 0:
					removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Removed %d records older than %s\n", removed, olderThan)
					return nil
				}

				records, err := store.List(cmd.Context(), queue.ListOptions{
					BookID: bookID,
					Status: queue.Status(status),
					Limit:  limit,
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, records)
				}
				if len(records) == 0 {
					fmt.Fprintln(out, "No transfer history")
					return nil
				}
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderHistoryTable(records, stats))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum records to show (0 for all)")
	cmd.Flags().StringVar(&bookID, "book", "", "Only show jobs for this book id")
	cmd.Flags().StringVar(&status, "status", "", "Only show jobs with this status (completed, failed, cancelled)")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete all history records")
	cmd.Flags().DurationVar(&olderThan, "prune", 0, "Delete records finished longer ago than this duration")
	addJSONFlag(cmd, &jsonOutput, "records")
	return cmd
}

func renderHistoryTable(records []queue.JobRecord, stats map[queue.Status]int) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		finished := "-"
		if rec.FinishedAt != nil {
			finished = humanize.Time(*rec.FinishedAt)
		}
		took := "-"
		if d := rec.Duration(); d > 0 {
			took = d.Round(time.Second).String()
		}
		rows = append(rows, []string{
			shortID(rec.JobID),
			rec.BookID,
			truncate(rec.Title, 32),
			string(rec.Status),
			fmt.Sprintf("%d/%d", rec.FilesDone, rec.FilesTotal),
			finished,
			took,
			truncate(rec.Error, 48),
		})
	}
	footer := []string{"", "", "", fmt.Sprintf("%d ok / %d failed / %d cancelled",
		stats[queue.StatusCompleted], stats[queue.StatusFailed], stats[queue.StatusCancelled])}
	return renderTable([]column{
		{header: "Job"},
		{header: "Book"},
		{header: "Title"},
		{header: "Status"},
		{header: "Files", align: alignRight},
		{header: "Finished"},
		{header: "Took", align: alignRight},
		{header: "Error"},
	}, rows, footer)
}
