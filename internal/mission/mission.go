// Package mission provides mission plan loading and the waypoint store.
package mission

// Waypoint is a target planar pose the robot should reach.
type Waypoint struct {
	Name string  `yaml:"name" json:"name"`
	X    float64 `yaml:"x_m" json:"x_m"`
	Y    float64 `yaml:"y_m" json:"y_m"`
	Yaw  float64 `yaml:"yaw_rad" json:"yaw_rad"`
}

// Mission is an ordered list of waypoints traversed in sequence.
type Mission struct {
	Name string `yaml:"name" json:"name"`

	// Exploration switches the sequencer's timeout policy from skip/abort
	// to halfway-waypoint synthesis.
	Exploration bool `yaml:"exploration,omitempty" json:"exploration,omitempty"`

	// OnAborted names the mission to jump to when this mission aborts.
	// Empty means the plan fails.
	OnAborted string `yaml:"on_aborted,omitempty" json:"on_aborted,omitempty"`

	Waypoints []Waypoint `yaml:"waypoints" json:"waypoints"`
}

// Plan is an ordered list of missions executed by the outer mission graph.
type Plan struct {
	Name    string `yaml:"name" json:"name"`
	FrameID string `yaml:"frame_id,omitempty" json:"frame_id,omitempty"`

	Missions []Mission `yaml:"missions" json:"missions"`

	// Source is the file path the plan was loaded from, or "builtin".
	Source string `yaml:"-" json:"source,omitempty"`
}

// MissionNames returns the mission names in plan order.
func (p *Plan) MissionNames() []string {
	names := make([]string, 0, len(p.Missions))
	for _, m := range p.Missions {
		names = append(names, m.Name)
	}
	return names
}

// Waypoints returns the total waypoint count across all missions.
func (p *Plan) Waypoints() int {
	total := 0
	for _, m := range p.Missions {
		total += len(m.Waypoints)
	}
	return total
}
