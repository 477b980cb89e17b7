// Package geo provides planar geometry helpers for waypoint navigation.
package geo

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// YawToQuat converts a heading about the Z axis into a unit quaternion.
func YawToQuat(yaw float64) quat.Number {
	half := yaw / 2
	return quat.Number{Real: math.Cos(half), Kmag: math.Sin(half)}
}

// QuatToYaw extracts the Z-axis heading from a quaternion using the
// ZYX Euler convention. Roll and pitch are discarded.
func QuatToYaw(q quat.Number) float64 {
	siny := 2 * (q.Real*q.Kmag + q.Imag*q.Jmag)
	cosy := 1 - 2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag)
	return math.Atan2(siny, cosy)
}

// Distance2D returns the Euclidean distance between two points in the XY plane.
func Distance2D(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

// Midpoint2D returns the point halfway between two points in the XY plane.
func Midpoint2D(x1, y1, x2, y2 float64) (float64, float64) {
	return (x1 + x2) / 2, (y1 + y2) / 2
}
