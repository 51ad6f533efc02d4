package handlers

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/localrivet/editormcp/config"
	"github.com/localrivet/editormcp/server"
)

// Command names of the built-in handlers.
const (
	CommandGetSceneInfo      = "get_scene_info"
	CommandCreateObject      = "create_object"
	CommandModifyObject      = "modify_object"
	CommandDeleteObject      = "delete_object"
	CommandBatchCreate       = "batch_create"
	CommandBatchModify       = "batch_modify"
	CommandBatchDelete       = "batch_delete"
	CommandSelectActor       = "select_actor"
	CommandGetSelectedActors = "get_selected_actors"
	CommandPing              = "ping"
)

type toolInfo struct {
	description string
	schema      *jsonschema.Schema
}

func vectorSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "object",
		Description: desc,
		Properties: map[string]*jsonschema.Schema{
			"x": {Type: "number"},
			"y": {Type: "number"},
			"z": {Type: "number"},
		},
	}
}

func rotatorSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "object",
		Description: "Rotation in degrees",
		Properties: map[string]*jsonschema.Schema{
			"pitch": {Type: "number"},
			"yaw":   {Type: "number"},
			"roll":  {Type: "number"},
		},
	}
}

func transformProperties(props map[string]*jsonschema.Schema) map[string]*jsonschema.Schema {
	props["location"] = vectorSchema("World location")
	props["rotation"] = rotatorSchema()
	props["scale"] = vectorSchema("Scale, 1 is unchanged")
	return props
}

func actorSpecSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: transformProperties(map[string]*jsonschema.Schema{
			"class_name": {Type: "string", Description: "Class to spawn, e.g. 'ASkyLight' or 'StaticMeshActor'"},
			"name":       {Type: "string", Description: "Actor name; generated when omitted"},
		}),
		Required: []string{"class_name"},
	}
}

func actorNameSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"actor_name": {Type: "string"},
		},
		Required: []string{"actor_name"},
	}
}

func emptySchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object"}
}

func batchLimit() *int {
	n := config.MaxBatchOperations
	return &n
}

var tools = map[string]toolInfo{
	CommandGetSceneInfo: {
		description: "Get information about all actors in the current scene.",
		schema:      emptySchema(),
	},
	CommandCreateObject: {
		description: "Create a single actor in the scene. Requires 'class_name' (e.g., 'ASkyAtmosphere', 'ASkyLight', 'AStaticMeshActor'). Optional: 'name', 'location' ({x,y,z}), 'rotation' ({pitch,yaw,roll}), 'scale' ({x,y,z}), 'asset_path'.",
		schema: func() *jsonschema.Schema {
			s := actorSpecSchema()
			s.Properties["asset_path"] = &jsonschema.Schema{Type: "string", Description: "Static mesh asset to assign"}
			return s
		}(),
	},
	CommandModifyObject: {
		description: "Modify an existing actor. Requires 'actor_name'. Can update 'location' ({x,y,z}), 'rotation' ({pitch,yaw,roll}), 'scale' ({x,y,z}), and other properties.",
		schema: &jsonschema.Schema{
			Type: "object",
			Properties: transformProperties(map[string]*jsonschema.Schema{
				"actor_name": {Type: "string"},
			}),
			Required: []string{"actor_name"},
		},
	},
	CommandDeleteObject: {
		description: "Delete an actor from the scene. Requires 'actor_name'.",
		schema:      actorNameSchema(),
	},
	CommandBatchCreate: {
		description: "Batch create multiple actors in the scene. Requires 'actors' array with each actor having 'class_name' (required), 'name', 'location' ({x,y,z}), 'rotation' ({pitch,yaw,roll}), and 'scale' ({x,y,z}).",
		schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"actors": {Type: "array", Items: actorSpecSchema(), MaxItems: batchLimit()},
			},
			Required: []string{"actors"},
		},
	},
	CommandBatchModify: {
		description: "Batch modify multiple actors. Requires 'actors' array with each containing 'name' and properties to modify.",
		schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"actors": {
					Type: "array",
					Items: &jsonschema.Schema{
						Type: "object",
						Properties: transformProperties(map[string]*jsonschema.Schema{
							"name": {Type: "string"},
						}),
						Required: []string{"name"},
					},
					MaxItems: batchLimit(),
				},
			},
			Required: []string{"actors"},
		},
	},
	CommandBatchDelete: {
		description: "Batch delete multiple actors. Requires 'actor_names' array of actor names to delete.",
		schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"actor_names": {Type: "array", Items: &jsonschema.Schema{Type: "string"}, MaxItems: batchLimit()},
			},
			Required: []string{"actor_names"},
		},
	},
	CommandSelectActor: {
		description: "Select an actor in the editor.",
		schema:      actorNameSchema(),
	},
	CommandGetSelectedActors: {
		description: "Get list of currently selected actors.",
		schema:      emptySchema(),
	},
	CommandPing: {
		description: "Check that the server is responsive.",
		schema:      emptySchema(),
	},
}

// Describer supplies tools/list metadata for the built-in commands.
type Describer struct{}

var _ server.ToolDescriber = Describer{}

// DescribeTool implements server.ToolDescriber.
func (Describer) DescribeTool(name string) (string, map[string]any, bool) {
	info, ok := tools[name]
	if !ok {
		return "", nil, false
	}
	schema, err := schemaMap(info.schema)
	if err != nil {
		return info.description, nil, true
	}
	return info.description, schema, true
}

// Schema returns the input schema of a built-in command.
func Schema(name string) (*jsonschema.Schema, bool) {
	info, ok := tools[name]
	return info.schema, ok
}

func schemaMap(s *jsonschema.Schema) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
