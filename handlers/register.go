package handlers

import (
	"github.com/localrivet/editormcp/scene"
	"github.com/localrivet/editormcp/server"
)

// Register installs the built-in commands on srv, using srv's configuration
// for the scene info cap, and returns how many were registered. Pass
// Describer{} to server.WithToolDescriber for their tools/list metadata.
func Register(srv *server.Server, sc scene.Access) int {
	set := NewScene(sc, srv.Config().MaxActorsInSceneInfo, srv.Logger())

	n := 0
	for _, h := range set.Handlers() {
		if srv.RegisterExternalCommandHandler(h) {
			n++
		}
	}
	return n
}
