package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"shelfcast/internal/library"
	"shelfcast/internal/logging"
	"shelfcast/internal/notifications"
	"shelfcast/internal/queue"
	"shelfcast/internal/transfer"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var selector library.Selector
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "fetch <book-id>...",
		Short: "Download book assets into the library",
		Long: "Download the selected assets of one or more books. Partial files are resumed.\n" +
			"Without --audio, --ebook, or --readaloud every available asset is fetched.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if selector.Empty() {
				selector = library.SelectAll()
			}
			return runFetch(cmd, ctx, args, selector, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&selector.Audio, "audio", false, "Fetch the audiobook")
	cmd.Flags().BoolVar(&selector.Ebook, "ebook", false, "Fetch the ebook")
	cmd.Flags().BoolVar(&selector.ReadAloud, "readaloud", false, "Fetch the read-aloud ebook")
	addJSONFlag(cmd, &jsonOutput, "final job snapshots")
	return cmd
}

func runFetch(cmd *cobra.Command, ctx *commandContext, ids []string, selector library.Selector, jsonOutput bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	client, err := ctx.catalogClient()
	if err != nil {
		return err
	}
	layout, err := ctx.layout()
	if err != nil {
		return err
	}

	return ctx.withStore(func(store *queue.Store) error {
		opCtx := operationContext(cmd, "fetch")
		started := time.Now()
		coord := transfer.NewCoordinator(layout, transfer.NewWorker(cfg, logger), logger,
			transfer.WithMaxConcurrent(cfg.Transfer.MaxConcurrent),
			transfer.WithRecorder(historyRecorder{store: store}),
		)

		runCtx, stopRun := context.WithCancel(opCtx)
		runDone := make(chan struct{})
		go func() {
			defer close(runDone)
			_ = coord.Run(runCtx)
		}()
		shutdown := func() {
			stopRun()
			<-runDone
		}

		events, unsubscribe := coord.Subscribe(64)
		renderDone := make(chan struct{})
		go func() {
			defer close(renderDone)
			renderProgress(cmd.ErrOrStderr(), events, len(ids) == 1 && isTerminal(cmd.ErrOrStderr()))
		}()

		var (
			bookIDs  []string
			failures int
		)
		for _, id := range ids {
			book, err := client.Book(opCtx, id)
			if err != nil {
				logging.WarnWithContext(logger, "book lookup failed", "catalog_lookup_failed",
					logging.BookID(id),
					logging.Error(err),
					logging.String(logging.FieldImpact, "book skipped"),
				)
				failures++
				continue
			}
			snap, created, err := coord.Enqueue(book, selector)
			if err != nil {
				failures++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
				continue
			}
			if !created {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: already transferring\n", id)
			}
			bookIDs = append(bookIDs, snap.BookID)
		}

		finals := make([]transfer.Snapshot, 0, len(bookIDs))
		var waitErr error
		for _, id := range bookIDs {
			snap, err := coord.Wait(opCtx, id)
			if err != nil {
				waitErr = err
				break
			}
			finals = append(finals, snap)
		}
		if waitErr != nil {
			// Interrupted jobs are finalized during shutdown; pick up their state.
			shutdown()
			finals = finals[:0]
			for _, id := range bookIDs {
				if snap, ok := coord.Get(id); ok {
					finals = append(finals, snap)
				} else if snap, err := coord.Wait(context.Background(), id); err == nil {
					finals = append(finals, snap)
				}
			}
		} else {
			shutdown()
		}
		unsubscribe()
		<-renderDone

		for _, snap := range finals {
			if !snap.Completed() {
				failures++
			}
		}
		notifyOutcomes(opCtx, notifications.NewService(cfg), logger, finals, time.Since(started))
		if jsonOutput {
			if err := writeJSON(cmd, finals); err != nil {
				return err
			}
		} else if len(finals) > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), renderJobTable(finals))
		}

		switch {
		case waitErr != nil:
			return waitErr
		case failures > 0:
			return fmt.Errorf("%d of %d books did not complete", failures, len(ids))
		}
		return nil
	})
}

// renderProgress prints transfer progress until events is closed. With bar
// set, a single progress bar tracks the job; otherwise one line is printed per
// state or file change.
func renderProgress(out io.Writer, events <-chan transfer.Snapshot, bar bool) {
	var (
		pb      *progressbar.ProgressBar
		lastKey = make(map[string]string)
	)
	for snap := range events {
		if bar {
			if pb == nil && snap.Status == transfer.StatusDownloading {
				pb = progressbar.NewOptions(1000,
					progressbar.OptionSetWriter(out),
					progressbar.OptionSetDescription(snap.Title),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionThrottle(100*time.Millisecond),
					progressbar.OptionClearOnFinish(),
				)
			}
			if pb != nil {
				_ = pb.Set(int(snap.Progress * 1000))
				if snap.Terminal() {
					_ = pb.Finish()
					pb = nil
				}
			}
			continue
		}
		key := fmt.Sprintf("%s/%d", snap.Status, snap.Current)
		if lastKey[snap.BookID] == key {
			continue
		}
		lastKey[snap.BookID] = key
		fmt.Fprintf(out, "%-10s %-28s %s\n", snap.Status, truncate(snap.Title, 28), progressLine(snap))
	}
}

func progressLine(snap transfer.Snapshot) string {
	switch {
	case snap.Status == transfer.StatusDownloading && snap.Current >= 0 && snap.Current < len(snap.Files):
		return fmt.Sprintf("%d/%d %s", snap.Current+1, len(snap.Files), filepath.Base(snap.Files[snap.Current].Dest))
	case snap.Error != "":
		return snap.Error
	default:
		return snap.Message
	}
}

func renderJobTable(snaps []transfer.Snapshot) string {
	rows := make([][]string, 0, len(snaps))
	for _, snap := range snaps {
		rows = append(rows, []string{
			snap.BookID,
			truncate(snap.Title, 40),
			string(snap.Status),
			fmt.Sprintf("%d/%d", snap.FilesDone(), len(snap.Files)),
			snap.Error,
		})
	}
	return renderTable([]column{
		{header: "Book"},
		{header: "Title"},
		{header: "Status"},
		{header: "Files", align: alignRight},
		{header: "Error"},
	}, rows, nil)
}

func truncate(value string, width int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if width <= 1 || len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}

// notifyOutcomes publishes one event per finished book, plus a batch summary
// when more than one book was fetched. Cancelled jobs are not announced.
func notifyOutcomes(ctx context.Context, svc notifications.Service, logger *slog.Logger, finals []transfer.Snapshot, elapsed time.Duration) {
	if !notifications.Enabled(svc) {
		return
	}
	publish := func(event notifications.Event, payload notifications.Payload) {
		if err := svc.Publish(ctx, event, payload); err != nil {
			logging.WarnWithContext(logger, "notification failed", "notification_failed",
				logging.String("event", string(event)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "transfer outcome not announced"),
			)
		}
	}

	var completed, failed int
	for _, snap := range finals {
		switch snap.Status {
		case transfer.StatusCompleted:
			completed++
			publish(notifications.EventTransferCompleted, notifications.Payload{
				"title": snap.Title,
				"files": len(snap.Files),
			})
		case transfer.StatusFailed:
			failed++
			publish(notifications.EventTransferFailed, notifications.Payload{
				"title": snap.Title,
				"error": snap.Error,
			})
		}
	}
	if len(finals) > 1 {
		publish(notifications.EventBatchCompleted, notifications.Payload{
			"completed": completed,
			"failed":    failed,
			"duration":  elapsed,
		})
	}
}
