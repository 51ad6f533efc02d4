package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/localrivet/editormcp/config"
	"github.com/localrivet/editormcp/scene"
	"github.com/localrivet/editormcp/server"
)

// Scene serves the built-in commands against a scene.Access.
type Scene struct {
	scene     scene.Access
	maxActors int
	logger    *slog.Logger
}

// NewScene returns the scene command set. maxActors caps the actor list of
// get_scene_info; zero means config.DefaultMaxActorsInSceneInfo.
func NewScene(sc scene.Access, maxActors int, logger *slog.Logger) *Scene {
	if maxActors <= 0 {
		maxActors = config.DefaultMaxActorsInSceneInfo
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scene{scene: sc, maxActors: maxActors, logger: logger}
}

// Handlers returns one CommandHandler per built-in command.
func (s *Scene) Handlers() []server.CommandHandler {
	return []server.CommandHandler{
		server.NewHandler(CommandGetSceneInfo, s.getSceneInfo),
		server.NewHandler(CommandCreateObject, s.createObject),
		server.NewHandler(CommandModifyObject, s.modifyObject),
		server.NewHandler(CommandDeleteObject, s.deleteObject),
		server.NewHandler(CommandBatchCreate, s.batchCreate),
		server.NewHandler(CommandBatchModify, s.batchModify),
		server.NewHandler(CommandBatchDelete, s.batchDelete),
		server.NewHandler(CommandSelectActor, s.selectActor),
		server.NewHandler(CommandGetSelectedActors, s.getSelectedActors),
		server.NewHandler(CommandPing, ping),
	}
}

func (s *Scene) getSceneInfo(_ map[string]any, _ server.Connection) map[string]any {
	actors := s.scene.Actors()
	listed := actors
	if len(listed) > s.maxActors {
		listed = listed[:s.maxActors]
	}

	return Success(map[string]any{
		"level":       s.scene.LevelName(),
		"actor_count": len(actors),
		"actors":      actorSummaries(listed),
	})
}

func (s *Scene) createObject(params map[string]any, _ server.Connection) map[string]any {
	var p createParams
	if err := decodeParams(params, &p); err != nil {
		return Errorf("Invalid parameters: %v", err)
	}
	a, errMsg := s.spawn(p)
	if errMsg != "" {
		return Error(errMsg)
	}

	s.logger.Debug("actor created", "actor", a.Name, "class", a.Class)
	return Success(map[string]any{
		"actor_name":  a.Name,
		"actor_class": a.Class,
	})
}

func (s *Scene) modifyObject(params map[string]any, _ server.Connection) map[string]any {
	var p modifyParams
	if err := decodeParams(params, &p); err != nil {
		return Errorf("Invalid parameters: %v", err)
	}
	if p.ActorName == "" {
		return Error("Missing 'actor_name' parameter")
	}
	if msg := s.modify(p.ActorName, p.Transform); msg != "" {
		return Error(msg)
	}

	return Success(map[string]any{
		"actor_name": p.ActorName,
		"message":    "Actor modified successfully",
	})
}

func (s *Scene) deleteObject(params map[string]any, _ server.Connection) map[string]any {
	var p actorNameParams
	if err := decodeParams(params, &p); err != nil {
		return Errorf("Invalid parameters: %v", err)
	}
	if p.ActorName == "" {
		return Error("Missing 'actor_name' parameter")
	}
	if err := s.scene.Destroy(p.ActorName); err != nil {
		return Error(sceneError(err, p.ActorName))
	}

	return Success(map[string]any{
		"actor_name": p.ActorName,
		"message":    "Actor deleted successfully",
	})
}

func (s *Scene) selectActor(params map[string]any, _ server.Connection) map[string]any {
	var p actorNameParams
	if err := decodeParams(params, &p); err != nil {
		return Errorf("Invalid parameters: %v", err)
	}
	if p.ActorName == "" {
		return Error("Missing 'actor_name' parameter")
	}
	if err := s.scene.Select(p.ActorName); err != nil {
		return Error(sceneError(err, p.ActorName))
	}

	return Success(map[string]any{
		"actor_name": p.ActorName,
		"message":    "Actor selected",
	})
}

func (s *Scene) getSelectedActors(_ map[string]any, _ server.Connection) map[string]any {
	selected := s.scene.Selected()
	return Success(map[string]any{
		"count":  len(selected),
		"actors": actorSummaries(selected),
	})
}

func ping(_ map[string]any, conn server.Connection) map[string]any {
	result := map[string]any{
		"message": "pong",
		"server":  config.ServerName,
		"version": config.ServerVersion,
	}
	if conn != nil {
		result["connection_id"] = conn.ID()
	}
	return Success(result)
}

// spawn returns the created actor or a user-facing error message.
func (s *Scene) spawn(p createParams) (scene.Actor, string) {
	if p.ClassName == "" {
		return scene.Actor{}, "Missing 'class_name' parameter"
	}
	loc, rot, scale := p.Transform.spawnTransform()
	a, err := s.scene.Spawn(scene.SpawnParams{
		Class:     p.ClassName,
		Name:      p.Name,
		Location:  loc,
		Rotation:  rot,
		Scale:     scale,
		AssetPath: p.AssetPath,
	})
	switch {
	case errors.Is(err, scene.ErrClassNotFound):
		return scene.Actor{}, "Class not found: " + p.ClassName
	case errors.Is(err, scene.ErrNameTaken):
		return scene.Actor{}, "Actor name already in use: " + p.Name
	case err != nil:
		return scene.Actor{}, "Failed to spawn actor: " + err.Error()
	}
	return a, ""
}

// modify returns an empty string on success.
func (s *Scene) modify(name string, t transformParams) string {
	current, err := s.scene.Find(name)
	if err != nil {
		return sceneError(err, name)
	}
	patch := t.patch(current)
	if patch.Empty() {
		return ""
	}
	if _, err := s.scene.Update(name, patch); err != nil {
		return sceneError(err, name)
	}
	return ""
}

func sceneError(err error, name string) string {
	if errors.Is(err, scene.ErrActorNotFound) {
		return "Actor not found: " + name
	}
	return fmt.Sprintf("%s: %v", name, err)
}

func actorSummaries(actors []scene.Actor) []map[string]any {
	out := make([]map[string]any, 0, len(actors))
	for _, a := range actors {
		out = append(out, map[string]any{
			"name":  a.Name,
			"class": a.Class,
			"location": map[string]any{
				"x": a.Location.X,
				"y": a.Location.Y,
				"z": a.Location.Z,
			},
		})
	}
	return out
}
