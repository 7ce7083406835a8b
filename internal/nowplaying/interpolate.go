package nowplaying

import "time"

const (
	// smoothingStep advances the displayed position between polls so the bar
	// does not appear frozen at poll granularity.
	smoothingStep = 300 * time.Millisecond
	// accelWindow is the tail of the track where the display speeds up.
	accelWindow = 10 * time.Second
	// snapWindow is the tail where the display pins to the end.
	snapWindow = 2 * time.Second
	// endGuard keeps the displayed position short of the actual end.
	endGuard = 100 * time.Millisecond
)

// VirtualPosition maps the raw polled position to the position shown to
// users. Near the end of a track the raw position appears to stall because of
// poll granularity, so the display accelerates toward the end and finally
// snaps just short of it. This is purely a presentation transform; playback
// state is never touched.
func VirtualPosition(raw, duration time.Duration) time.Duration {
	if raw < 0 {
		raw = 0
	}
	if duration <= 0 {
		return raw
	}
	if raw >= duration {
		return duration - endGuard
	}

	remaining := duration - raw
	if remaining < snapWindow {
		return duration - endGuard
	}

	step := smoothingStep
	if remaining <= accelWindow {
		factor := 1 + float64(accelWindow-remaining)/float64(accelWindow)
		step = time.Duration(float64(smoothingStep) * factor)
	}

	pos := raw + step
	if limit := duration - endGuard; pos > limit {
		pos = limit
	}

	return pos
}
