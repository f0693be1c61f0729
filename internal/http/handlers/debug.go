package handlers

import (
	"net/http"
)

// DebugTracker exposes the connection stores' registries and chat states for
// leak hunting.
func (a *App) DebugTracker(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Tracker.DebugInfo())
}
