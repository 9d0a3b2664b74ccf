package server

import (
	"github.com/flyingwithjoel/fwj-api/authguard"
	"github.com/flyingwithjoel/fwj-api/config"
	"github.com/flyingwithjoel/fwj-api/content"
	"github.com/flyingwithjoel/fwj-api/datarequest"
	"github.com/flyingwithjoel/fwj-api/incident"
	"github.com/flyingwithjoel/fwj-api/kvstore"
	"github.com/flyingwithjoel/fwj-api/suggestions"
	"github.com/flyingwithjoel/fwj-api/twitchapi"
)

// Deps are the collaborators the handlers delegate to. Config is required; a nil
// Twitch channel makes the Twitch routes report that the integration is not set up.
type Deps struct {
	Config      *config.Config
	KV          kvstore.Store
	Guard       *authguard.Guard
	Incident    *incident.Store
	DataRequest *datarequest.Workflow
	Content     *content.Store
	Suggestions *suggestions.Forwarder
	Twitch      *twitchapi.Channel
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}
