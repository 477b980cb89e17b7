package mission

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadPlan reads a mission plan from disk. The reference BuiltinName
// selects the bundled demo plan instead of a file.
func LoadPlan(path string) (*Plan, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("plan path is required")
	}
	if path == BuiltinName {
		return BuiltinPlan()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}

	plan, err := ParsePlan(data)
	if err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	plan.Source = path
	return plan, nil
}

// ParsePlan decodes and validates a mission plan document.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, err
	}

	plan.Name = strings.TrimSpace(plan.Name)
	if plan.Name == "" {
		return nil, fmt.Errorf("plan name is required")
	}
	plan.FrameID = strings.TrimSpace(plan.FrameID)

	if len(plan.Missions) == 0 {
		return nil, fmt.Errorf("plan missions are required")
	}

	missionNames := make(map[string]struct{}, len(plan.Missions))
	for i := range plan.Missions {
		m := &plan.Missions[i]
		if err := normalizeMission(m); err != nil {
			return nil, fmt.Errorf("mission %d: %w", i+1, err)
		}
		if _, exists := missionNames[m.Name]; exists {
			return nil, fmt.Errorf("duplicate mission %q", m.Name)
		}
		missionNames[m.Name] = struct{}{}
	}

	for i := range plan.Missions {
		m := &plan.Missions[i]
		if m.OnAborted == "" {
			continue
		}
		if m.OnAborted == m.Name {
			return nil, fmt.Errorf("mission %q: on_aborted must not reference itself", m.Name)
		}
		if _, exists := missionNames[m.OnAborted]; !exists {
			return nil, fmt.Errorf("mission %q: on_aborted references unknown mission %q", m.Name, m.OnAborted)
		}
	}

	return &plan, nil
}

func normalizeMission(m *Mission) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return fmt.Errorf("mission name is required")
	}
	m.OnAborted = strings.TrimSpace(m.OnAborted)

	if len(m.Waypoints) == 0 {
		return fmt.Errorf("mission waypoints are required")
	}

	seen := make(map[string]struct{}, len(m.Waypoints))
	for i := range m.Waypoints {
		name := strings.TrimSpace(m.Waypoints[i].Name)
		if name == "" {
			return fmt.Errorf("waypoint %d: name is required", i+1)
		}
		if _, exists := seen[name]; exists {
			return fmt.Errorf("duplicate waypoint %q", name)
		}
		seen[name] = struct{}{}
		m.Waypoints[i].Name = name
	}

	return nil
}
