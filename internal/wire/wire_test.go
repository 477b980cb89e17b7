package wire

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestPoseStampedYawRoundTrip(t *testing.T) {
	for _, yaw := range []float64{0, 0.7, -0.7, math.Pi / 2, 3.0} {
		msg := NewPoseStamped(time.Now(), "world", 1, 2, yaw)
		if !scalar.EqualWithinAbs(msg.Yaw(), yaw, 1e-12) {
			t.Errorf("yaw %v round-tripped to %v", yaw, msg.Yaw())
		}
	}
}

func TestPoseStampedJSONShape(t *testing.T) {
	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msg := NewPoseStamped(stamp, "world", 1.5, 0.25, 0)

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, field := range []string{"stamp", "frame_id", "position", "orientation"} {
		if _, ok := decoded[field]; !ok {
			t.Fatalf("missing field %q in %s", field, data)
		}
	}

	var back PoseStamped
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal PoseStamped: %v", err)
	}
	if back.Position.X != 1.5 || back.Position.Y != 0.25 || back.Position.Z != 0 {
		t.Fatalf("unexpected position: %+v", back.Position)
	}
	if back.FrameID != "world" {
		t.Fatalf("unexpected frame: %q", back.FrameID)
	}
	if !back.Stamp.Equal(stamp) {
		t.Fatalf("unexpected stamp: %v", back.Stamp)
	}
}

func TestIdentityOrientationYaw(t *testing.T) {
	msg := PoseStamped{Orientation: Quaternion{W: 1}}
	if msg.Yaw() != 0 {
		t.Fatalf("identity quaternion yaw = %v, want 0", msg.Yaw())
	}
}
