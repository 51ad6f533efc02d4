package handlers

import (
	"fmt"

	"github.com/localrivet/editormcp/config"
	"github.com/localrivet/editormcp/server"
)

// Batch commands run every item even when earlier ones fail. The envelope
// is a success unless the request itself is unusable; per-item failures
// are reported in results.

func (s *Scene) batchCreate(params map[string]any, _ server.Connection) map[string]any {
	var p batchCreateParams
	if err := decodeParams(params, &p); err != nil {
		return Errorf("Invalid parameters: %v", err)
	}
	if msg := checkBatchSize("actors", len(p.Actors)); msg != "" {
		return Error(msg)
	}

	var b batchResult
	for i, item := range p.Actors {
		a, msg := s.spawn(item)
		if msg != "" {
			b.fail(i, item.Name, msg)
			continue
		}
		b.ok(i, map[string]any{"actor_name": a.Name, "actor_class": a.Class})
	}
	s.logger.Debug("batch create finished", "succeeded", b.succeeded, "failed", b.failed)
	return Success(b.result())
}

func (s *Scene) batchModify(params map[string]any, _ server.Connection) map[string]any {
	var p batchModifyParams
	if err := decodeParams(params, &p); err != nil {
		return Errorf("Invalid parameters: %v", err)
	}
	if msg := checkBatchSize("actors", len(p.Actors)); msg != "" {
		return Error(msg)
	}

	var b batchResult
	for i, item := range p.Actors {
		if item.Name == "" {
			b.fail(i, "", "Missing 'name' parameter")
			continue
		}
		if msg := s.modify(item.Name, item.Transform); msg != "" {
			b.fail(i, item.Name, msg)
			continue
		}
		b.ok(i, map[string]any{"actor_name": item.Name})
	}
	s.logger.Debug("batch modify finished", "succeeded", b.succeeded, "failed", b.failed)
	return Success(b.result())
}

func (s *Scene) batchDelete(params map[string]any, _ server.Connection) map[string]any {
	var p batchDeleteParams
	if err := decodeParams(params, &p); err != nil {
		return Errorf("Invalid parameters: %v", err)
	}
	if msg := checkBatchSize("actor_names", len(p.ActorNames)); msg != "" {
		return Error(msg)
	}

	var b batchResult
	for i, name := range p.ActorNames {
		if err := s.scene.Destroy(name); err != nil {
			b.fail(i, name, sceneError(err, name))
			continue
		}
		b.ok(i, map[string]any{"actor_name": name})
	}
	s.logger.Debug("batch delete finished", "succeeded", b.succeeded, "failed", b.failed)
	return Success(b.result())
}

func checkBatchSize(field string, n int) string {
	switch {
	case n == 0:
		return fmt.Sprintf("Missing '%s' array", field)
	case n > config.MaxBatchOperations:
		return fmt.Sprintf("Too many operations: %d (max %d)", n, config.MaxBatchOperations)
	}
	return ""
}

type batchResult struct {
	items     []map[string]any
	succeeded int
	failed    int
}

func (b *batchResult) ok(index int, fields map[string]any) {
	fields["index"] = index
	fields["status"] = StatusSuccess
	b.items = append(b.items, fields)
	b.succeeded++
}

func (b *batchResult) fail(index int, name, message string) {
	item := map[string]any{
		"index":   index,
		"status":  StatusError,
		"message": message,
	}
	if name != "" {
		item["actor_name"] = name
	}
	b.items = append(b.items, item)
	b.failed++
}

func (b *batchResult) result() map[string]any {
	return map[string]any{
		"results":       b.items,
		"success_count": b.succeeded,
		"failure_count": b.failed,
	}
}
