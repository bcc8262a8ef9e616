package simulator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cradle-labs/cradle-core/internal/errs"
)

const checkpointFileName = "simulation_state.json"

// StatePersistence saves and loads a SimulationState as JSON on disk, so a
// continuous-mode run survives a process restart without replaying slots
// that already completed.
type StatePersistence struct {
	dir string
}

// NewStatePersistence roots checkpoint files under dir.
func NewStatePersistence(dir string) *StatePersistence {
	return &StatePersistence{dir: dir}
}

func (p *StatePersistence) path() string {
	return filepath.Join(p.dir, checkpointFileName)
}

// Save writes state to the checkpoint file, overwriting any previous one.
func (p *StatePersistence) Save(state SimulationState) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal simulation state: %w", err)
	}
	tmp := p.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, p.path())
}

// Load reads the checkpoint file back into a SimulationState.
func (p *StatePersistence) Load() (SimulationState, error) {
	data, err := os.ReadFile(p.path())
	if err != nil {
		if os.IsNotExist(err) {
			return SimulationState{}, errs.NotFound("no checkpoint at %s", p.path())
		}
		return SimulationState{}, fmt.Errorf("read checkpoint: %w", err)
	}
	var state SimulationState
	if err := json.Unmarshal(data, &state); err != nil {
		return SimulationState{}, fmt.Errorf("unmarshal simulation state: %w", err)
	}
	return state, nil
}

// Delete removes the checkpoint file, if present.
func (p *StatePersistence) Delete() error {
	err := os.Remove(p.path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
