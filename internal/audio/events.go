package audio

// TrackEndReason mirrors the node's reported reason for a track ending.
type TrackEndReason string

const (
	TrackEndFinished   TrackEndReason = "finished"
	TrackEndLoadFailed TrackEndReason = "loadFailed"
	TrackEndStopped    TrackEndReason = "stopped"
	TrackEndReplaced   TrackEndReason = "replaced"
	TrackEndCleanup    TrackEndReason = "cleanup"
)

// mayStartNext reports whether the next queued track should start automatically.
func (r TrackEndReason) mayStartNext() bool {
	return r == TrackEndFinished || r == TrackEndLoadFailed
}

// EventHandler receives playback events for every session owned by a Manager.
// A Manager dispatches to exactly one handler; components that care about a
// subset of events are fanned out by that handler, not by the Manager.
type EventHandler interface {
	OnTrackStart(s *Session, track *Track)
	OnTrackEnd(s *Session, track *Track, reason TrackEndReason)
	OnQueueEnd(s *Session, last *Track)
	OnStateUpdate(s *Session, old, current ConnectionState)
	OnPlayerDestroy(s *Session)
}
