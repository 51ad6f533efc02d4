package scene

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnDefaults(t *testing.T) {
	m := NewMemory()

	a, err := m.Spawn(SpawnParams{Class: "PointLight"})
	require.NoError(t, err)

	assert.Equal(t, "PointLight_0", a.Name)
	assert.Equal(t, "PointLight", a.Class)
	assert.Equal(t, Vector{}, a.Location)
	assert.Equal(t, UnitScale, a.Scale)
	_, err = uuid.Parse(a.ID)
	assert.NoError(t, err)

	b, err := m.Spawn(SpawnParams{Class: "PointLight"})
	require.NoError(t, err)
	assert.Equal(t, "PointLight_1", b.Name)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSpawnClassResolution(t *testing.T) {
	m := NewMemory(WithClasses("BP_Door"))

	tests := []struct {
		class string
		want  string
		err   error
	}{
		{"SkyLight", "SkyLight", nil},
		{"ASkyAtmosphere", "SkyAtmosphere", nil},
		{"BP_Door", "BP_Door", nil},
		{"MyStaticMeshThing", StaticMeshActor, nil},
		{"Unicorn", "", ErrClassNotFound},
		{"", "", ErrClassNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			a, err := m.Spawn(SpawnParams{Class: tt.class})
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Class)
		})
	}
}

func TestSpawnRejectsDuplicateName(t *testing.T) {
	m := NewMemory()
	_, err := m.Spawn(SpawnParams{Class: "Actor", Name: "Cube"})
	require.NoError(t, err)

	_, err = m.Spawn(SpawnParams{Class: "Actor", Name: "Cube"})
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestAutoNameSkipsTakenNames(t *testing.T) {
	m := NewMemory()
	_, err := m.Spawn(SpawnParams{Class: "Actor", Name: "Actor_0"})
	require.NoError(t, err)

	a, err := m.Spawn(SpawnParams{Class: "Actor"})
	require.NoError(t, err)
	assert.Equal(t, "Actor_1", a.Name)
}

func TestUpdatePatchesOnlyGivenFields(t *testing.T) {
	m := NewMemory()
	loc := Vector{X: 1, Y: 2, Z: 3}
	_, err := m.Spawn(SpawnParams{Class: "Actor", Name: "Box", Location: &loc})
	require.NoError(t, err)

	rot := Rotator{Yaw: 90}
	a, err := m.Update("Box", Patch{Rotation: &rot})
	require.NoError(t, err)

	assert.Equal(t, loc, a.Location)
	assert.Equal(t, rot, a.Rotation)
	assert.Equal(t, UnitScale, a.Scale)

	_, err = m.Update("Missing", Patch{})
	assert.ErrorIs(t, err, ErrActorNotFound)
}

func TestDestroyAndSelection(t *testing.T) {
	m := NewMemory()
	for _, name := range []string{"A1", "A2", "A3"} {
		_, err := m.Spawn(SpawnParams{Class: "Actor", Name: name})
		require.NoError(t, err)
	}

	require.NoError(t, m.Select("A2"))
	require.Len(t, m.Selected(), 1)
	assert.Equal(t, "A2", m.Selected()[0].Name)

	require.NoError(t, m.Destroy("A2"))
	assert.Empty(t, m.Selected())

	names := []string{}
	for _, a := range m.Actors() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"A1", "A3"}, names)

	assert.ErrorIs(t, m.Destroy("A2"), ErrActorNotFound)
	assert.ErrorIs(t, m.Select("A2"), ErrActorNotFound)
}

func TestActorsReturnsCopies(t *testing.T) {
	m := NewMemory()
	_, err := m.Spawn(SpawnParams{Class: "Actor", Name: "Box"})
	require.NoError(t, err)

	actors := m.Actors()
	actors[0].Name = "Changed"

	a, err := m.Find("Box")
	require.NoError(t, err)
	assert.Equal(t, "Box", a.Name)
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, DefaultLevelName, NewMemory().LevelName())
	assert.Equal(t, "Lobby", NewMemory(WithLevelName("Lobby")).LevelName())
}
