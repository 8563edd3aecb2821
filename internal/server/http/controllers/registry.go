package controllers

import (
	"net/http"

	"github.com/otbe/factcast/internal/runtime"
	logpkg "github.com/otbe/factcast/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes.
type ControllerRegistry struct {
	general *GeneralController
	facts   *FactsController
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime, logger logpkg.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		facts:   NewFactsController(rt.Facts(), logger),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.facts.RegisterRoutes(mux)
}
