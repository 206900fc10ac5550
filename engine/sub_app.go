package engine

import (
	"time"

	"github.com/Debaug/particle-dance/common"
	"github.com/Debaug/particle-dance/engine/dance"
	"go.uber.org/zap"
)

// Time is the clock passed to every sub-app each frame.
type Time struct {
	// Elapsed is the time since the first frame.
	Elapsed time.Duration
	// Delta is the time since the previous frame.
	Delta time.Duration
	// Frame is the zero-based index of the frame.
	Frame uint64
}

// SubApp is one of the closed set of applications the engine drives.
// Use Dance and NewLogSubApp to create them.
type SubApp interface {
	subApp()
}

// danceApp runs the particle dance.
type danceApp struct {
	dance *dance.Dance
}

func (danceApp) subApp() {}

// Dance wraps a dance as a SubApp.
//
// Parameters:
//   - d: the dance to update and draw each frame
//
// Returns:
//   - SubApp: the wrapped dance
func Dance(d *dance.Dance) SubApp {
	return danceApp{dance: d}
}

// LogSubApp logs the frame clock at debug level every frame.
type LogSubApp struct {
	every uint64
}

func (*LogSubApp) subApp() {}

// NewLogSubApp creates a LogSubApp logging every nth frame. Zero logs every frame.
//
// Parameters:
//   - every: the logging period in frames
//
// Returns:
//   - *LogSubApp: the new sub-app
func NewLogSubApp(every uint64) *LogSubApp {
	return &LogSubApp{every: max(every, 1)}
}

func (l *LogSubApp) update(t Time) {
	if t.Frame%l.every != 0 {
		return
	}
	common.Logger().Debug("frame",
		zap.Uint64("frame", t.Frame),
		zap.Duration("elapsed", t.Elapsed),
		zap.Duration("delta", t.Delta),
	)
}
