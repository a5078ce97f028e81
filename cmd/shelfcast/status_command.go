package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shelfcast/internal/fileutil"
	"shelfcast/internal/library"
	"shelfcast/internal/queue"
)

type assetStatus struct {
	Kind       library.AssetKind `json:"kind"`
	Available  bool              `json:"available"`
	Path       string            `json:"path"`
	Downloaded bool              `json:"downloaded"`
	SizeBytes  int64             `json:"size_bytes"`
}

type bookStatus struct {
	Book    library.Book     `json:"book"`
	Assets  []assetStatus    `json:"assets"`
	LastJob *queue.JobRecord `json:"last_job,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status <book-id>",
		Short: "Show which assets of a book are downloaded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.catalogClient()
			if err != nil {
				return err
			}
			layout, err := ctx.layout()
			if err != nil {
				return err
			}
			book, err := client.Book(operationContext(cmd, "status"), args[0])
			if err != nil {
				return err
			}

			status := bookStatus{Book: book}
			for _, kind := range library.AllKinds {
				path := layout.Path(book, kind)
				status.Assets = append(status.Assets, assetStatus{
					Kind:       kind,
					Available:  book.URL(kind) != "",
					Path:       path,
					Downloaded: layout.Downloaded(book, kind),
					SizeBytes:  fileutil.FileSize(path),
				})
			}
			if err := ctx.withStore(func(store *queue.Store) error {
				rec, err := store.LatestForBook(cmd.Context(), book.ID)
				status.LastJob = rec
				return err
			}); err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, status)
			}
			printBookStatus(cmd, status)
			return nil
		},
	}
	addJSONFlag(cmd, &jsonOutput, "status")
	return cmd
}

func printBookStatus(cmd *cobra.Command, status bookStatus) {
	out := cmd.OutOrStdout()
	book := status.Book
	fmt.Fprintf(out, "%s by %s\n", book.Title, orDefault(book.Author, "Unknown Author"))
	if book.Series != "" {
		fmt.Fprintf(out, "Series: %s #%g\n", book.Series, book.SeriesIndex)
	}

	rows := make([][]string, 0, len(status.Assets))
	for _, asset := range status.Assets {
		size := "-"
		if asset.Downloaded {
			size = humanBytes(asset.SizeBytes)
		}
		rows = append(rows, []string{
			string(asset.Kind),
			yesNo(asset.Available),
			yesNo(asset.Downloaded),
			size,
			asset.Path,
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		{header: "Asset"},
		{header: "On server"},
		{header: "Local"},
		{header: "Size", align: alignRight},
		{header: "Path"},
	}, rows, nil))

	if job := status.LastJob; job != nil {
		line := fmt.Sprintf("Last transfer: %s", job.Status)
		if job.FinishedAt != nil {
			line += " " + humanize.Time(*job.FinishedAt)
		}
		if msg := strings.TrimSpace(job.Error); msg != "" {
			line += " (" + msg + ")"
		}
		fmt.Fprintln(out, line)
	}
}
