package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"shelfcast/internal/config"
	"shelfcast/internal/media/ffprobe"
)

type probeReport struct {
	Target         string           `json:"target"`
	NeedsTranscode bool             `json:"needs_transcode"`
	Metadata       ffprobe.Metadata `json:"metadata"`
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "probe <path|url>",
		Short: "Report codec, duration, and chapters of an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			prober, err := ctx.prober()
			if err != nil {
				return err
			}
			target := args[0]
			if !ffprobe.IsRemote(target) {
				if target, err = config.ExpandPath(target); err != nil {
					return err
				}
			}

			meta := prober.Probe(operationContext(cmd, "probe"), target)
			report := probeReport{
				Target:         target,
				NeedsTranscode: meta.NeedsTranscode(ffprobe.CodecSet(cfg.Transcode.CompatibleCodecs)),
				Metadata:       meta,
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Codec:        %s\n", meta.Codec)
			fmt.Fprintf(out, "Object-based: %s\n", yesNo(meta.ObjectBased))
			fmt.Fprintf(out, "Duration:     %s\n", formatMillis(meta.DurationMS))
			playable := "yes"
			if report.NeedsTranscode {
				playable = "no (needs transcode)"
			}
			fmt.Fprintf(out, "Playable:     %s\n", playable)
			if len(meta.Chapters) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(meta.Chapters))
			for i, ch := range meta.Chapters {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					ch.Title,
					formatMillis(ch.StartMS),
					formatMillis(ch.DurationMS),
				})
			}
			fmt.Fprintln(out, renderTable([]column{
				{header: "#", align: alignRight},
				{header: "Chapter"},
				{header: "Start", align: alignRight},
				{header: "Length", align: alignRight},
			}, rows, nil))
			return nil
		},
	}
	addJSONFlag(cmd, &jsonOutput, "probe result")
	return cmd
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	d := time.Duration(ms) * time.Millisecond
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
