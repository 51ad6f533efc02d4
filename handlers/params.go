package handlers

import "github.com/localrivet/editormcp/scene"

// vectorParams holds a partial {x,y,z} object. Missing components keep
// their current value.
type vectorParams struct {
	X *float64 `mapstructure:"x"`
	Y *float64 `mapstructure:"y"`
	Z *float64 `mapstructure:"z"`
}

func (v *vectorParams) apply(base scene.Vector) scene.Vector {
	if v.X != nil {
		base.X = *v.X
	}
	if v.Y != nil {
		base.Y = *v.Y
	}
	if v.Z != nil {
		base.Z = *v.Z
	}
	return base
}

type rotatorParams struct {
	Pitch *float64 `mapstructure:"pitch"`
	Yaw   *float64 `mapstructure:"yaw"`
	Roll  *float64 `mapstructure:"roll"`
}

func (r *rotatorParams) apply(base scene.Rotator) scene.Rotator {
	if r.Pitch != nil {
		base.Pitch = *r.Pitch
	}
	if r.Yaw != nil {
		base.Yaw = *r.Yaw
	}
	if r.Roll != nil {
		base.Roll = *r.Roll
	}
	return base
}

type transformParams struct {
	Location *vectorParams  `mapstructure:"location"`
	Rotation *rotatorParams `mapstructure:"rotation"`
	Scale    *vectorParams  `mapstructure:"scale"`
}

// spawnTransform resolves the transform of a new actor.
func (t transformParams) spawnTransform() (loc *scene.Vector, rot *scene.Rotator, scale *scene.Vector) {
	if t.Location != nil {
		v := t.Location.apply(scene.Vector{})
		loc = &v
	}
	if t.Rotation != nil {
		r := t.Rotation.apply(scene.Rotator{})
		rot = &r
	}
	if t.Scale != nil {
		v := t.Scale.apply(scene.UnitScale)
		scale = &v
	}
	return loc, rot, scale
}

// patch merges the given components onto the actor's current transform.
func (t transformParams) patch(current scene.Actor) scene.Patch {
	var p scene.Patch
	if t.Location != nil {
		v := t.Location.apply(current.Location)
		p.Location = &v
	}
	if t.Rotation != nil {
		r := t.Rotation.apply(current.Rotation)
		p.Rotation = &r
	}
	if t.Scale != nil {
		v := t.Scale.apply(current.Scale)
		p.Scale = &v
	}
	return p
}

type createParams struct {
	ClassName string          `mapstructure:"class_name"`
	Name      string          `mapstructure:"name"`
	AssetPath string          `mapstructure:"asset_path"`
	Transform transformParams `mapstructure:",squash"`
}

type modifyParams struct {
	ActorName string          `mapstructure:"actor_name"`
	Transform transformParams `mapstructure:",squash"`
}

// batchModifyItem names its actor with "name", unlike modify_object.
type batchModifyItem struct {
	Name      string          `mapstructure:"name"`
	Transform transformParams `mapstructure:",squash"`
}

type actorNameParams struct {
	ActorName string `mapstructure:"actor_name"`
}

type batchCreateParams struct {
	Actors []createParams `mapstructure:"actors"`
}

type batchModifyParams struct {
	Actors []batchModifyItem `mapstructure:"actors"`
}

type batchDeleteParams struct {
	ActorNames []string `mapstructure:"actor_names"`
}
