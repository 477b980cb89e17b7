package mission

// Store holds one mission's waypoints and the traversal cursor.
//
// The store is owned by a single sequencer activation and is not safe for
// concurrent use. The cursor ranges over [0, Len()]; a cursor equal to
// Len() means the mission is exhausted.
type Store struct {
	waypoints []Waypoint
	cursor    int
}

// NewStore builds a store over a copy of the given waypoints.
func NewStore(waypoints []Waypoint) *Store {
	owned := make([]Waypoint, len(waypoints))
	copy(owned, waypoints)
	return &Store{waypoints: owned}
}

// Current returns the waypoint under the cursor, or false when exhausted.
func (s *Store) Current() (Waypoint, bool) {
	if s.cursor >= len(s.waypoints) {
		return Waypoint{}, false
	}
	return s.waypoints[s.cursor], true
}

// Next returns the waypoint after the cursor, or false when the cursor is
// on the last entry or past the end.
func (s *Store) Next() (Waypoint, bool) {
	if s.cursor+1 >= len(s.waypoints) {
		return Waypoint{}, false
	}
	return s.waypoints[s.cursor+1], true
}

// Advance moves the cursor one entry forward. Advancing past the end is a
// no-op beyond marking the store exhausted.
func (s *Store) Advance() {
	if s.cursor < len(s.waypoints) {
		s.cursor++
	}
}

// ReplaceCurrent overwrites the entry under the cursor without moving it.
// The slot keeps its original name. No-op when exhausted.
func (s *Store) ReplaceCurrent(wp Waypoint) {
	if s.cursor >= len(s.waypoints) {
		return
	}
	wp.Name = s.waypoints[s.cursor].Name
	s.waypoints[s.cursor] = wp
}

// Reset moves the cursor back to the first waypoint.
func (s *Store) Reset() {
	s.cursor = 0
}

// Exhausted reports whether the cursor is past the last waypoint.
func (s *Store) Exhausted() bool {
	return s.cursor >= len(s.waypoints)
}

// Len returns the number of waypoints in the mission.
func (s *Store) Len() int {
	return len(s.waypoints)
}

// First reports whether the cursor is on the first waypoint.
func (s *Store) First() bool {
	return s.cursor == 0
}

// Last reports whether the cursor is on the final waypoint.
func (s *Store) Last() bool {
	return len(s.waypoints) > 0 && s.cursor == len(s.waypoints)-1
}

// Cursor returns the current cursor position.
func (s *Store) Cursor() int {
	return s.cursor
}
