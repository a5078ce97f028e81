package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"shelfcast/internal/library"
)

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <book-id>",
		Short: "Delete a book's local assets and cached conversion",
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
			engine, err := ctx.transcodeEngine()
			if err != nil {
				return err
			}
			book, err := client.Book(operationContext(cmd, "remove"), args[0])
			if err != nil {
				return err
			}

			removed, err := layout.Remove(book)
			cached := engine.Cache().Path(layout.Path(book, library.KindAudio))
			if rmErr := os.Remove(cached); rmErr == nil {
				removed = append(removed, cached)
			} else if !errors.Is(rmErr, fs.ErrNotExist) {
				err = errors.Join(err, fmt.Errorf("remove cached conversion: %w", rmErr))
			}

			out := cmd.OutOrStdout()
			if len(removed) == 0 {
				fmt.Fprintf(out, "Nothing to remove for %s\n", book.Title)
			}
			for _, path := range removed {
				fmt.Fprintf(out, "Removed %s\n", path)
			}
			return err
		},
	}
}
