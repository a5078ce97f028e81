package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"shelfcast/internal/config"
)

// Requirement defines an external dependency shelfcast relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the external tools configured in cfg.
func Requirements(cfg *config.Config) []Requirement {
	ffmpeg := cfg.FFmpegBinary()
	reqs := []Requirement{
		{Name: "FFmpeg", Command: ffmpeg, Description: "Transcodes incompatible audio and feeds live streams"},
		{Name: "FFprobe", Command: ResolveFFprobe(ffmpeg, cfg.FFprobeBinary()), Description: "Detects audio codecs, duration, and chapters"},
	}
	if native := cfg.NativeCommand(); native != "" {
		reqs = append(reqs, Requirement{
			Name:        "Native converter",
			Command:     native,
			Description: "Fast first-tier transcode",
			Optional:    true,
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the unavailable, non-optional entries.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
