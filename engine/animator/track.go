package animator

// Track binds a knot generator to a playback speed so callers can sample it with wall-clock seconds.
type Track[T Interpolable[T]] struct {
	knots     KnotFunc[T]
	timeScale float32
}

// NewTrack creates a Track that advances timeScale knots per second.
// A non-positive timeScale is treated as 1.
//
// Parameters:
//   - knots: the knot generator backing the track
//   - timeScale: knots per second
//
// Returns:
//   - Track[T]: the new track
func NewTrack[T Interpolable[T]](knots KnotFunc[T], timeScale float32) Track[T] {
	if timeScale <= 0 {
		timeScale = 1
	}
	return Track[T]{knots: knots, timeScale: timeScale}
}

// At samples the track at the given number of seconds.
func (tr Track[T]) At(seconds float32) T {
	return Cubic(tr.knots, seconds*tr.timeScale)
}

// TimeScale returns the number of knots traversed per second.
func (tr Track[T]) TimeScale() float32 {
	return tr.timeScale
}
