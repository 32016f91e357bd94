package engine

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conciergehq/concierge/internal/workflow"
)

// ErrStateNotFound means no run has been started in this workspace yet.
var ErrStateNotFound = errors.New("workflow engine: state not found")

// StateStore persists engine snapshots between invocations.
type StateStore interface {
	Load() (State, error)
	Save(State) error
}

// Repository keeps the snapshot as pretty-printed JSON in the run's state
// directory, where the status command and curious users can read it.
type Repository struct {
	path string
}

func NewRepository(wf *workflow.Workflow) *Repository {
	return &Repository{path: filepath.Join(wf.StateDir(), "state.json")}
}

func (r *Repository) Load() (State, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, ErrStateNotFound
	}
	if err != nil {
		return State{}, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, err
	}
	return state, nil
}

func (r *Repository) Save(state State) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, append(encoded, '\n'), 0o644)
}
