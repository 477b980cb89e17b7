// Package wire defines the JSON messages exchanged with the robot stack.
package wire

import (
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/fieldrover/wayfarer/internal/geo"
)

// Point is a position in the robot's reference frame, in meters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is an orientation in the robot's reference frame.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// PoseStamped is a timestamped pose. It is the payload of both the inbound
// pose feed and the outbound waypoint channel.
type PoseStamped struct {
	// Stamp is when the pose was produced, RFC 3339 with nanoseconds.
	Stamp time.Time `json:"stamp"`

	// FrameID names the reference frame the pose is expressed in.
	FrameID string `json:"frame_id"`

	// Position is the pose translation.
	Position Point `json:"position"`

	// Orientation is the pose rotation.
	Orientation Quaternion `json:"orientation"`
}

// NewPoseStamped builds a stamped pose from a planar target.
func NewPoseStamped(stamp time.Time, frameID string, x, y, yaw float64) PoseStamped {
	q := geo.YawToQuat(yaw)
	return PoseStamped{
		Stamp:   stamp,
		FrameID: frameID,
		Position: Point{
			X: x,
			Y: y,
		},
		Orientation: Quaternion{
			X: q.Imag,
			Y: q.Jmag,
			Z: q.Kmag,
			W: q.Real,
		},
	}
}

// Yaw extracts the planar heading from the pose orientation.
func (p PoseStamped) Yaw() float64 {
	return geo.QuatToYaw(quat.Number{
		Real: p.Orientation.W,
		Imag: p.Orientation.X,
		Jmag: p.Orientation.Y,
		Kmag: p.Orientation.Z,
	})
}
