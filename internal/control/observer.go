package control

import (
	"github.com/sg47/plane-slam/internal/geometry"
	"github.com/sg47/plane-slam/internal/landmark"
)

// Observer is notified after every successful mapping() call and after
// any command that mutates the map, as a one-way event interface.
// Implementations must not mutate poses or landmarks; both are
// read-only snapshots lent by the engine.
type Observer interface {
	OnMapUpdated(poses []geometry.Pose, landmarks []landmark.Landmark)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(poses []geometry.Pose, landmarks []landmark.Landmark)

// OnMapUpdated calls f.
func (f ObserverFunc) OnMapUpdated(poses []geometry.Pose, landmarks []landmark.Landmark) {
	f(poses, landmarks)
}
