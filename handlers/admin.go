package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"relaybot/core"
	"relaybot/services"
)

// AdminHTTPHandler exposes the operational surface of the pipeline: health,
// queue counters, the command catalog and permission administration
type AdminHTTPHandler struct {
	queue       services.ProcessingQueueService
	registry    services.CommandRegistryService
	permissions services.PermissionsService
}

func NewAdminHTTPHandler(
	queue services.ProcessingQueueService,
	registry services.CommandRegistryService,
	permissions services.PermissionsService,
) *AdminHTTPHandler {
	return &AdminHTTPHandler{
		queue:       queue,
		registry:    registry,
		permissions: permissions,
	}
}

func (h *AdminHTTPHandler) SetupEndpoints(router *mux.Router) {
	router.HandleFunc("/health", h.handleHealth).Methods("GET")
	router.HandleFunc("/api/stats", h.handleStats).Methods("GET")
	router.HandleFunc("/api/commands", h.handleCommands).Methods("GET")
	router.HandleFunc("/api/plugins", h.handlePlugins).Methods("GET")
	router.HandleFunc("/api/permissions/{identity}/{command}", h.handleGrantPermission).Methods("PUT")
	router.HandleFunc("/api/permissions/{identity}/{command}", h.handleRevokePermission).Methods("DELETE")
}

type commandResponse struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	Capability  string   `json:"capability,omitempty"`
	Scope       string   `json:"scope,omitempty"`
}

func (h *AdminHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AdminHTTPHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.Stats())
}

func (h *AdminHTTPHandler) handleCommands(w http.ResponseWriter, r *http.Request) {
	descriptors := h.registry.ListCommands()

	commands := make([]commandResponse, 0, len(descriptors))
	for _, descriptor := range descriptors {
		commands = append(commands, commandResponse{
			Name:        descriptor.Name,
			Aliases:     descriptor.Aliases,
			Category:    descriptor.Category,
			Description: descriptor.Description,
			Capability:  string(descriptor.Capability),
			Scope:       string(descriptor.Scope),
		})
	}
	writeJSON(w, http.StatusOK, commands)
}

func (h *AdminHTTPHandler) handlePlugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.ListPlugins())
}

func (h *AdminHTTPHandler) handleGrantPermission(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	identity, command := vars["identity"], vars["command"]

	if err := h.permissions.Grant(r.Context(), identity, command); err != nil {
		log.Printf("❌ Failed to grant %s to %s via API: %v", command, identity, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to grant permission"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"identity": identity, "command": command})
}

func (h *AdminHTTPHandler) handleRevokePermission(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	identity, command := vars["identity"], vars["command"]

	if err := h.permissions.Revoke(r.Context(), identity, command); err != nil {
		if core.IsNotFoundError(err) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "permission not found"})
			return
		}
		log.Printf("❌ Failed to revoke %s from %s via API: %v", command, identity, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to revoke permission"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("❌ Failed to encode JSON response: %v", err)
	}
}
