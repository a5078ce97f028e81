package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shelfcast/internal/config"
)

func newTranscodeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transcode <path>...",
		Short: "Convert files the player cannot decode into the transcode cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.transcodeEngine()
			if err != nil {
				return err
			}
			opCtx := operationContext(cmd, "transcode")
			out := cmd.OutOrStdout()
			for _, arg := range args {
				source, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				playable := engine.EnsurePlayable(opCtx, source)
				if err := opCtx.Err(); err != nil {
					return err
				}
				if playable == source {
					fmt.Fprintf(out, "%s: playable as is\n", source)
					continue
				}
				fmt.Fprintf(out, "%s -> %s\n", source, playable)
			}
			return nil
		},
	}
}
