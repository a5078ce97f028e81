package transfer

import "math"

// progressGate limits snapshot publication while bytes stream in: one update
// per step of overall progress, plus one whenever the active file changes.
type progressGate struct {
	step  float64
	file  int
	level int
}

// newProgressGate returns a gate with the given step as a fraction of the
// whole job. Steps outside (0, 1] fall back to one percent.
func newProgressGate(step float64) *progressGate {
	if step <= 0 || step > 1 {
		step = 0.01
	}
	return &progressGate{step: step, file: -1, level: -1}
}

// pass reports whether the update for file at overall fraction should be
// published.
func (g *progressGate) pass(file int, fraction float64) bool {
	open := false
	if file != g.file {
		g.file = file
		open = true
	}
	level := int(math.Floor(fraction/g.step + 1e-9))
	if fraction >= 1 {
		level = int(math.Round(1 / g.step))
	}
	if level > g.level {
		g.level = level
		open = true
	}
	return open
}
