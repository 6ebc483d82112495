// Package savestate defines the versioned structural record of a
// simulation - every particle's and object's histories plus the replay
// position - and its JSON codec. The record is a pure description of
// the data; it carries no engine behavior.
package savestate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/pthm-cable/amoebot/grid"
)

// Version is incremented when the record format changes.
const Version = 1

// IntHistory serializes an integer-valued history as parallel arrays.
type IntHistory struct {
	Rounds []int `json:"rounds"`
	Values []int `json:"values"`
	Latest int   `json:"latest"`
}

// NodeHistory serializes a node-valued history.
type NodeHistory struct {
	Rounds []int       `json:"rounds"`
	Values []grid.Node `json:"values"`
	Latest int         `json:"latest"`
}

// PinConfigRecord describes one pin configuration structurally.
type PinConfigRecord struct {
	PinsPerEdge int   `json:"pins_per_edge"`
	HeadDir     int   `json:"head_dir"`
	SetOf       []int `json:"set_of"`
}

// PinHistory serializes a pin-configuration history.
type PinHistory struct {
	Rounds []int             `json:"rounds"`
	Values []PinConfigRecord `json:"values"`
	Latest int               `json:"latest"`
}

// BondHistory serializes the per-round active-bond flags as bit masks
// over global labels.
type BondHistory struct {
	Rounds []int    `json:"rounds"`
	Values []uint16 `json:"values"`
	Latest int      `json:"latest"`
}

// SignalRecord describes the signals a particle received in one round.
type SignalRecord struct {
	Beeps []bool   `json:"beeps"`
	Msgs  [][]byte `json:"msgs"`
}

// SignalHistory serializes a received-signal history.
type SignalHistory struct {
	Rounds []int          `json:"rounds"`
	Values []SignalRecord `json:"values"`
	Latest int            `json:"latest"`
}

// AttrRecord serializes one algorithm attribute's history with values
// encoded per kind.
type AttrRecord struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Rounds []int    `json:"rounds"`
	Values []string `json:"values"`
	Latest int      `json:"latest"`
}

// ParticleRecord is the complete stored state of one particle.
type ParticleRecord struct {
	ID        int  `json:"id"`
	Chirality bool `json:"chirality"`
	Compass   int  `json:"compass"`

	Head    NodeHistory   `json:"head"`
	ExpDir  IntHistory    `json:"exp_dir"`
	Pins    PinHistory    `json:"pins"`
	Bonds   BondHistory   `json:"bonds"`
	Signals SignalHistory `json:"signals"`
	Attrs   []AttrRecord  `json:"attrs"`
}

// ObjectRecord is the complete stored state of one object.
type ObjectRecord struct {
	ID    int           `json:"id"`
	Cells []grid.Vector `json:"cells"`
	Pos   NodeHistory   `json:"pos"`
}

// State is the versioned save record of a whole simulation.
type State struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`

	EarliestRound int  `json:"earliest_round"`
	CurrentRound  int  `json:"current_round"`
	LatestRound   int  `json:"latest_round"`
	FinishedRound *int `json:"finished_round,omitempty"`

	Anchor    IntHistory       `json:"anchor"`
	Particles []ParticleRecord `json:"particles"`
	Objects   []ObjectRecord   `json:"objects"`
}

// New returns an empty state stamped with the current version and a
// fresh run ID.
func New() *State {
	return &State{Version: Version, RunID: uuid.NewString()}
}

// Save writes the state as JSON, creating parent directories.
func Save(path string, st *State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating save directory: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	return nil
}

// Load reads a state written by Save and checks its version.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}
	st := &State{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	if st.Version != Version {
		return nil, fmt.Errorf("unsupported state version %d (want %d)", st.Version, Version)
	}
	return st, nil
}
