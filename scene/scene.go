// Package scene defines the host scene collaborator used by the built-in
// command handlers, plus an in-memory implementation for tests and
// standalone runs.
package scene

import (
	"errors"
	"fmt"
)

var (
	// ErrActorNotFound is returned when no actor has the requested name.
	ErrActorNotFound = errors.New("actor not found")
	// ErrClassNotFound is returned when a class name cannot be resolved.
	ErrClassNotFound = errors.New("class not found")
	// ErrNameTaken is returned when a spawn requests a name already in use.
	ErrNameTaken = errors.New("actor name already in use")
)

// Vector is a location or scale in world units.
type Vector struct {
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
	Z float64 `json:"z" mapstructure:"z"`
}

// Rotator is an orientation in degrees.
type Rotator struct {
	Pitch float64 `json:"pitch" mapstructure:"pitch"`
	Yaw   float64 `json:"yaw" mapstructure:"yaw"`
	Roll  float64 `json:"roll" mapstructure:"roll"`
}

// UnitScale is the scale of a freshly spawned actor.
var UnitScale = Vector{X: 1, Y: 1, Z: 1}

// Actor is a snapshot of one object placed in the scene.
type Actor struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Class     string  `json:"class"`
	Location  Vector  `json:"location"`
	Rotation  Rotator `json:"rotation"`
	Scale     Vector  `json:"scale"`
	AssetPath string  `json:"asset_path,omitempty"`
}

// SpawnParams describes an actor to create. Nil transform fields take the
// defaults: origin, no rotation, unit scale.
type SpawnParams struct {
	Class     string
	Name      string
	Location  *Vector
	Rotation  *Rotator
	Scale     *Vector
	AssetPath string
}

// Patch lists the fields of an existing actor to change. Nil fields are
// left alone.
type Patch struct {
	Location *Vector
	Rotation *Rotator
	Scale    *Vector
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Location == nil && p.Rotation == nil && p.Scale == nil
}

// Access is the scene the handlers operate on. Implementations are called
// from the server tick and need not be safe for concurrent use unless the
// host shares them across goroutines.
type Access interface {
	// LevelName returns the name of the loaded level.
	LevelName() string
	// Actors returns every actor in spawn order.
	Actors() []Actor
	// Spawn creates an actor and returns its snapshot.
	Spawn(p SpawnParams) (Actor, error)
	// Find returns the actor called name.
	Find(name string) (Actor, error)
	// Update applies patch to the actor called name.
	Update(name string, patch Patch) (Actor, error)
	// Destroy removes the actor called name.
	Destroy(name string) error
	// Select replaces the selection with the named actor.
	Select(name string) error
	// Selected returns the selected actors.
	Selected() []Actor
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", ErrActorNotFound, name)
}
