package main

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/c360/sembridge/component"
	"github.com/c360/sembridge/errors"
)

// mountHandlers attaches the operational endpoints to the HTTP server:
//
//	GET  /status           component health and flow snapshot
//	GET  /pending          commands awaiting operator confirmation
//	POST /pending/confirm  release a pending command
//	POST /pending/reject   discard a pending command
//	GET  /rules            rule records with trigger metadata
//	POST /rules/enable     toggle a rule without restarting
//	GET  /cycles           retained summaries of recent cycles
//	POST /trigger          run an evaluation cycle now
func (app *application) mountHandlers() {
	app.server.HandleFunc("/status", app.handleStatus)
	app.server.HandleFunc("/pending", app.handlePending)
	app.server.HandleFunc("/pending/confirm", app.handleConfirm)
	app.server.HandleFunc("/pending/reject", app.handleReject)
	app.server.HandleFunc("/rules", app.handleRules)
	app.server.HandleFunc("/rules/enable", app.handleRuleEnable)
	app.server.HandleFunc("/cycles", app.handleCycles)
	app.server.HandleFunc("/trigger", app.handleTrigger)
}

type componentStatus struct {
	Meta   component.Metadata     `json:"meta"`
	Health component.HealthStatus `json:"health"`
	Flow   component.FlowMetrics  `json:"flow"`
}

type statusReply struct {
	Version    string            `json:"version"`
	Healthy    bool              `json:"healthy"`
	Pending    int               `json:"pending"`
	Components []componentStatus `json:"components"`
}

func (app *application) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	reply := statusReply{Version: Version, Healthy: true}
	for _, comp := range app.components {
		health := comp.Health()
		if !health.Healthy {
			reply.Healthy = false
		}
		reply.Components = append(reply.Components, componentStatus{
			Meta:   comp.Meta(),
			Health: health,
			Flow:   comp.DataFlow(),
		})
	}
	reply.Pending = len(app.coord.PendingCommands())

	status := http.StatusOK
	if !reply.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, reply)
}

func (app *application) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	pending := app.coord.PendingCommands()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(pending),
		"pending": pending,
	})
}

// pendingDecision is the confirm/reject request body.
type pendingDecision struct {
	CommandID string `json:"command_id"`
	Reason    string `json:"reason,omitempty"`
}

func (app *application) handleConfirm(w http.ResponseWriter, r *http.Request) {
	decision, ok := readDecision(w, r)
	if !ok {
		return
	}

	if err := app.coord.ConfirmPending(r.Context(), decision.CommandID); err != nil {
		writePendingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"command_id": decision.CommandID,
		"result":     "released",
	})
}

func (app *application) handleReject(w http.ResponseWriter, r *http.Request) {
	decision, ok := readDecision(w, r)
	if !ok {
		return
	}

	reason := decision.Reason
	if reason == "" {
		reason = "rejected by operator"
	}
	if err := app.coord.RejectPending(r.Context(), decision.CommandID, reason); err != nil {
		writePendingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"command_id": decision.CommandID,
		"result":     "rejected",
	})
}

func (app *application) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	all := app.store.All()
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(all),
		"rules": all,
	})
}

// ruleToggle is the enable/disable request body. Enabled is a pointer
// so an omitted field is distinguishable from false.
type ruleToggle struct {
	RuleID  string `json:"rule_id"`
	Enabled *bool  `json:"enabled"`
}

func (app *application) handleRuleEnable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var toggle ruleToggle
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&toggle); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if toggle.RuleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "rule_id is required"})
		return
	}
	if toggle.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required"})
		return
	}

	if err := app.store.SetEnabled(toggle.RuleID, *toggle.Enabled); err != nil {
		status := http.StatusInternalServerError
		if stderrors.Is(err, errors.ErrRuleNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rule_id": toggle.RuleID,
		"enabled": *toggle.Enabled,
	})
}

func (app *application) handleCycles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	cycles := app.coord.RecentCycles()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(cycles),
		"cycles": cycles,
	})
}

// handleTrigger nudges the evaluation loop. The channel holds one
// token; a trigger while one is queued is acknowledged without
// queueing another.
func (app *application) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	select {
	case app.trigger <- struct{}{}:
		writeJSON(w, http.StatusAccepted, map[string]string{"result": "cycle triggered"})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"result": "cycle already queued"})
	}
}

// readDecision decodes and validates the confirm/reject request body.
func readDecision(w http.ResponseWriter, r *http.Request) (pendingDecision, bool) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return pendingDecision{}, false
	}

	var decision pendingDecision
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&decision); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return pendingDecision{}, false
	}
	if decision.CommandID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "command_id is required"})
		return pendingDecision{}, false
	}
	return decision, true
}

func writePendingError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if stderrors.Is(err, errors.ErrPendingNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}
