package controllers

import (
	"net/http"

	"github.com/otbe/factcast/internal/runtime"
)

// GeneralController handles general HTTP endpoints like health and namespaces.
//
// It provides endpoints for service health monitoring and for browsing the
// namespaces and types that facts have been published under.
type GeneralController struct {
	rt *runtime.Runtime
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers general routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Health checks (/v1/healthz)
// - Namespace and type enumeration (/v1/namespaces, /v1/namespaces/types)
// - Server description (/v1/serverconfig)
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/namespaces", c.handleListNamespaces)
	mux.HandleFunc("/v1/namespaces/types", c.handleListTypes)
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/serverconfig", c.handleServerConfig)
}

// handleListNamespaces lists all namespaces.
//
// Returns a JSON response with an array of namespace names.
func (c *GeneralController) handleListNamespaces(w http.ResponseWriter, r *http.Request) {
	list, err := c.rt.Facts().EnumerateNamespaces(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list namespaces")
		return
	}
	if list == nil {
		list = []string{}
	}
	writeJSON(w, map[string]any{"namespaces": list})
}

// handleListTypes lists the types seen in ?ns=.
func (c *GeneralController) handleListTypes(w http.ResponseWriter, r *http.Request) {
	ns := r.URL.Query().Get("ns")
	if ns == "" {
		writeError(w, http.StatusBadRequest, "ns is required")
		return
	}
	list, err := c.rt.Facts().EnumerateTypes(r.Context(), ns)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list types")
		return
	}
	if list == nil {
		list = []string{}
	}
	writeJSON(w, map[string]any{"namespace": ns, "types": list})
}

// handleHealth returns the health status of the service.
//
// Returns 200 OK with {"status": "ok"} if healthy, 503 Service Unavailable otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]any{
		"status":        "ok",
		"subscriptions": c.rt.Facts().ActiveSubscriptions(),
	})
}

func (c *GeneralController) handleServerConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, c.rt.Facts().ServerConfig())
}
