package graph

import (
	"errors"

	"github.com/fieldrover/wayfarer/internal/mission"
	"github.com/fieldrover/wayfarer/internal/models"
	"github.com/fieldrover/wayfarer/internal/sequencer"
)

// Config bundles the sequencer tuning per mission mode. A zero Exploration
// config falls back to Standard.
type Config struct {
	Standard    sequencer.Config
	Exploration sequencer.Config
}

// Build wires one sequencer per mission in plan order: completed flows to
// the following mission (Success after the last), aborted to the mission's
// on_aborted override (Failure without one), and next_waypoint re-enters
// the same mission.
func Build(plan *mission.Plan, cfg Config, deps sequencer.Deps) (*Machine, error) {
	if plan == nil || len(plan.Missions) == 0 {
		return nil, errors.New("plan has no missions")
	}

	exploreCfg := cfg.Exploration
	if exploreCfg == (sequencer.Config{}) {
		exploreCfg = cfg.Standard
	}

	m := New()

	for i, ms := range plan.Missions {
		next := Success
		if i+1 < len(plan.Missions) {
			next = plan.Missions[i+1].Name
		}

		onAborted := Failure
		if ms.OnAborted != "" {
			onAborted = ms.OnAborted
		}

		mcfg := cfg.Standard
		if ms.Exploration {
			mcfg = exploreCfg
		}
		mcfg.Exploration = ms.Exploration

		seq := sequencer.New(mcfg, ms.Name, mission.NewStore(ms.Waypoints), deps)

		err := m.AddState(ms.Name, seq, Transitions{
			models.OutcomeCompleted:    next,
			models.OutcomeAborted:      onAborted,
			models.OutcomeNextWaypoint: ms.Name,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := m.SetStart(plan.Missions[0].Name); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}
