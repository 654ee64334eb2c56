// Package gesture classifies hand landmark sets into car actions. Landmarks
// use the mediapipe hand model: 21 points in normalized image coordinates.
package gesture

import "github.com/go-gl/mathgl/mgl64"

type HandType int

const (
	Unknown HandType = iota
	Left
	Right
)

type IndexOrientation int

const (
	IndexStraight IndexOrientation = iota
	IndexLeft
	IndexRight
)

// Landmark indices in the mediapipe hand model.
const (
	Wrist = 0

	ThumbCMC = 1
	ThumbTip = 4

	IndexMCP = 5
	IndexTip = 8

	MiddleMCP = 9
	MiddleTip = 12

	RingMCP = 13
	RingTip = 16

	PinkyMCP = 17
	PinkyTip = 20

	LandmarkCount = 21
)

// Classification thresholds, in normalized image units.
const (
	OpenThreshold        = 0.06
	OrientationThreshold = 0.05
	VisibilityMargin     = 0.01
)

// Hand is one detected hand. Type carries the detector's handedness label;
// use EffectiveType for classification since partially framed hands are
// unreliable.
type Hand struct {
	Type      HandType
	Landmarks []mgl64.Vec3
}

// FullyVisible reports whether every landmark sits inside the image bounds
// with the given margin.
func (h Hand) FullyVisible(margin float64) bool {
	if len(h.Landmarks) < LandmarkCount {
		return false
	}
	for _, l := range h.Landmarks {
		if l.X() < margin || l.X() > 1-margin || l.Y() < margin || l.Y() > 1-margin {
			return false
		}
	}
	return true
}

// EffectiveType degrades to Unknown when the hand is not fully in frame.
func (h Hand) EffectiveType() HandType {
	if !h.FullyVisible(VisibilityMargin) {
		return Unknown
	}
	return h.Type
}

// IsOpen checks that every fingertip sits far enough from its base joint.
func (h Hand) IsOpen(threshold float64) bool {
	if len(h.Landmarks) < LandmarkCount {
		return false
	}

	fingers := [][2]int{
		{ThumbTip, ThumbCMC},
		{IndexTip, IndexMCP},
		{MiddleTip, MiddleMCP},
		{RingTip, RingMCP},
		{PinkyTip, PinkyMCP},
	}
	for _, f := range fingers {
		d := h.Landmarks[f[0]].Sub(h.Landmarks[f[1]]).Len()
		if d <= threshold {
			return false
		}
	}
	return true
}

// IndexOrientation classifies which way the index finger points. The camera
// mirrors the scene, so a positive x offset reads as pointing left.
func (h Hand) IndexOrientation(threshold float64) IndexOrientation {
	if len(h.Landmarks) < LandmarkCount {
		return IndexStraight
	}

	diff := h.Landmarks[IndexTip].X() - h.Landmarks[IndexMCP].X()
	switch {
	case diff > threshold:
		return IndexLeft
	case diff < -threshold:
		return IndexRight
	default:
		return IndexStraight
	}
}
