package api

import (
	"context"
	"net/http"

	"github.com/sydlexius/spinmatch/internal/provider"
)

type providerInfo struct {
	Name        provider.ProviderName       `json:"name"`
	DisplayName string                      `json:"display_name"`
	Configured  bool                        `json:"configured"`
	Capability  provider.ProviderCapability `json:"capability"`
}

// handleListProviders lists every known upstream with its access tier,
// documented limits and whether this instance has it wired.
func (r *Router) handleListProviders(w http.ResponseWriter, req *http.Request) {
	caps := provider.ProviderCapabilities()
	out := make([]providerInfo, 0, len(caps))
	for _, name := range provider.AllProviderNames() {
		out = append(out, providerInfo{
			Name:        name,
			DisplayName: name.DisplayName(),
			Configured:  r.providerRegistry.Get(name) != nil,
			Capability:  caps[name],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

// handleTestProviders runs a connection test against every wired upstream.
func (r *Router) handleTestProviders(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), r.testTimeout)
	defer cancel()
	statuses := r.providerRegistry.TestAll(ctx)
	ok := true
	for _, s := range statuses {
		ok = ok && s.OK
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": ok, "providers": statuses})
}
