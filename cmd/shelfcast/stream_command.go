package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"shelfcast/internal/config"
	"shelfcast/internal/streaming"
)

func newStreamCommand(ctx *commandContext) *cobra.Command {
	var (
		position int64
		output   string
	)
	cmd := &cobra.Command{
		Use:   "stream <url>",
		Short: "Live-transcode a remote audio file to AAC",
		Long: "Stream a remote audio file through ffmpeg as ADTS AAC. --position is a byte\n" +
			"offset into the output stream and is mapped to a time offset at the configured bitrate.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			var dst io.Writer = cmd.OutOrStdout()
			if output != "" {
				path, err := config.ExpandPath(output)
				if err != nil {
					return err
				}
				file, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer file.Close()
				dst = file
			} else if isTerminal(dst) {
				return errors.New("refusing to write audio to a terminal; use --output or redirect stdout")
			}

			bridge := streaming.New(cfg, logger)
			defer bridge.Close()
			if _, err := bridge.Open(operationContext(cmd, "stream"), args[0], position); err != nil {
				return err
			}
			written, err := io.Copy(dst, bridge)
			if err != nil {
				return fmt.Errorf("stream: %w", err)
			}
			if ctxErr := cmd.Context().Err(); ctxErr != nil {
				return ctxErr
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Streamed %s\n", humanBytes(written))
			return nil
		},
	}
	cmd.Flags().Int64Var(&position, "position", 0, "Byte position to start from")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the stream to this file instead of stdout")
	return cmd
}
