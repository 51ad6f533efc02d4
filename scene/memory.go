package scene

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultLevelName is the level reported by a Memory scene.
const DefaultLevelName = "Untitled"

// StaticMeshActor is the class used for unknown StaticMesh variants.
const StaticMeshActor = "StaticMeshActor"

// DefaultClasses are the classes a Memory scene can spawn out of the box.
var DefaultClasses = []string{
	"Actor",
	"StaticMeshActor",
	"PointLight",
	"SpotLight",
	"DirectionalLight",
	"SkyLight",
	"SkyAtmosphere",
	"ExponentialHeightFog",
	"CameraActor",
	"PlayerStart",
}

// Memory is an in-process scene.
type Memory struct {
	mu       sync.RWMutex
	level    string
	classes  map[string]struct{}
	actors   []*Actor
	byName   map[string]*Actor
	selected map[string]struct{}
	counters map[string]int
}

// MemoryOption configures a Memory scene.
type MemoryOption func(*Memory)

// WithLevelName sets the reported level name.
func WithLevelName(name string) MemoryOption {
	return func(m *Memory) {
		m.level = name
	}
}

// WithClasses adds spawnable classes.
func WithClasses(classes ...string) MemoryOption {
	return func(m *Memory) {
		for _, c := range classes {
			m.classes[c] = struct{}{}
		}
	}
}

// NewMemory returns an empty scene that can spawn DefaultClasses.
func NewMemory(options ...MemoryOption) *Memory {
	m := &Memory{
		level:    DefaultLevelName,
		classes:  make(map[string]struct{}, len(DefaultClasses)),
		byName:   make(map[string]*Actor),
		selected: make(map[string]struct{}),
		counters: make(map[string]int),
	}
	for _, c := range DefaultClasses {
		m.classes[c] = struct{}{}
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *Memory) LevelName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

func (m *Memory) Actors() []Actor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Actor, len(m.actors))
	for i, a := range m.actors {
		out[i] = *a
	}
	return out
}

// Spawn resolves p.Class, accepting the engine "A" prefix (ASkyLight), and
// falls back to StaticMeshActor for unknown classes naming a static mesh.
// Without a name the actor is called Class_N.
func (m *Memory) Spawn(p SpawnParams) (Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	class, ok := m.resolveClass(p.Class)
	if !ok {
		return Actor{}, fmt.Errorf("%w: %s", ErrClassNotFound, p.Class)
	}

	name := p.Name
	if name == "" {
		name = m.nextName(class)
	} else if _, exists := m.byName[name]; exists {
		return Actor{}, fmt.Errorf("%w: %s", ErrNameTaken, name)
	}

	a := &Actor{
		ID:        uuid.NewString(),
		Name:      name,
		Class:     class,
		Scale:     UnitScale,
		AssetPath: p.AssetPath,
	}
	if p.Location != nil {
		a.Location = *p.Location
	}
	if p.Rotation != nil {
		a.Rotation = *p.Rotation
	}
	if p.Scale != nil {
		a.Scale = *p.Scale
	}

	m.actors = append(m.actors, a)
	m.byName[name] = a
	return *a, nil
}

func (m *Memory) Find(name string) (Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byName[name]
	if !ok {
		return Actor{}, notFound(name)
	}
	return *a, nil
}

func (m *Memory) Update(name string, patch Patch) (Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byName[name]
	if !ok {
		return Actor{}, notFound(name)
	}
	if patch.Location != nil {
		a.Location = *patch.Location
	}
	if patch.Rotation != nil {
		a.Rotation = *patch.Rotation
	}
	if patch.Scale != nil {
		a.Scale = *patch.Scale
	}
	return *a, nil
}

func (m *Memory) Destroy(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byName[name]
	if !ok {
		return notFound(name)
	}
	delete(m.byName, name)
	delete(m.selected, name)
	for i, other := range m.actors {
		if other == a {
			m.actors = append(m.actors[:i], m.actors[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) Select(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byName[name]; !ok {
		return notFound(name)
	}
	clear(m.selected)
	m.selected[name] = struct{}{}
	return nil
}

func (m *Memory) Selected() []Actor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Actor
	for _, a := range m.actors {
		if _, ok := m.selected[a.Name]; ok {
			out = append(out, *a)
		}
	}
	return out
}

// resolveClass must be called with mu held.
func (m *Memory) resolveClass(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if _, ok := m.classes[name]; ok {
		return name, true
	}
	if len(name) > 1 && name[0] == 'A' && name[1] >= 'A' && name[1] <= 'Z' {
		if _, ok := m.classes[name[1:]]; ok {
			return name[1:], true
		}
	}
	if strings.Contains(name, "StaticMesh") {
		return StaticMeshActor, true
	}
	return "", false
}

// nextName must be called with mu held.
func (m *Memory) nextName(class string) string {
	for {
		name := fmt.Sprintf("%s_%d", class, m.counters[class])
		m.counters[class]++
		if _, taken := m.byName[name]; !taken {
			return name
		}
	}
}

var _ Access = (*Memory)(nil)
