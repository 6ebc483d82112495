package savestate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/amoebot/grid"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	st := New()
	st.EarliestRound = 0
	st.CurrentRound = 3
	st.LatestRound = 3
	st.Anchor = IntHistory{Rounds: []int{0}, Values: []int{0}, Latest: 3}
	st.Particles = []ParticleRecord{{
		ID:      0,
		Compass: 0,
		Head: NodeHistory{
			Rounds: []int{0, 2},
			Values: []grid.Node{{X: 0, Y: 0}, {X: 1, Y: 0}},
			Latest: 3,
		},
		ExpDir: IntHistory{Rounds: []int{0}, Values: []int{int(grid.None)}, Latest: 3},
		Attrs: []AttrRecord{{
			Name: "phase", Kind: "string",
			Rounds: []int{0}, Values: []string{"idle"}, Latest: 3,
		}},
	}}

	path := filepath.Join(t.TempDir(), "nested", "state.json")
	require.NoError(t, Save(path, st))

	back, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, st.RunID, back.RunID)
	require.Equal(t, st.Particles[0].Head.Values, back.Particles[0].Head.Values)
	require.Equal(t, "phase", back.Particles[0].Attrs[0].Name)
}

func TestLoadRejectsWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99}`), 0644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))
	_, err := Load(path)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestNewStampsIdentity(t *testing.T) {
	a, b := New(), New()
	require.Equal(t, Version, a.Version)
	require.NotEmpty(t, a.RunID)
	require.NotEqual(t, a.RunID, b.RunID)
}
