package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vmitrev/agentmesh/internal/log"
	"github.com/vmitrev/agentmesh/pkg/service"
	"github.com/vmitrev/agentmesh/pkg/storage"
)

// StartServer starts the agentmesh HTTP API on the given port.
func StartServer(port string, svc *service.WorkflowService, defaultTimeout time.Duration) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/workflows", WorkflowsHandler(svc, defaultTimeout))
	mux.HandleFunc("/workflows/", WorkflowByIDHandler(svc, defaultTimeout))

	log.GetLogger().Infof("Starting agentmesh server on :%s", port)
	return http.ListenAndServe(":"+port, mux)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "agentmesh server is running")
}

type createWorkflowRequest struct {
	Description    string `json:"description"`
	ContextID      string `json:"context_id"`
	CreatedBy      string `json:"created_by"`
	Execute        bool   `json:"execute"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// WorkflowsHandler serves GET /workflows (list) and POST /workflows
// (decompose a task description, optionally executing the result).
func WorkflowsHandler(svc *service.WorkflowService, defaultTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listWorkflowsHTTP(w, svc)
		case http.MethodPost:
			createWorkflowHTTP(w, r, svc, defaultTimeout)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func createWorkflowHTTP(w http.ResponseWriter, r *http.Request, svc *service.WorkflowService, defaultTimeout time.Duration) {
	var req createWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Description == "" {
		log.GetLogger().Error("Missing 'description' in POST /workflows")
		http.Error(w, "Missing 'description'", http.StatusBadRequest)
		return
	}

	wf, err := svc.Decompose(r.Context(), req.Description, req.ContextID, req.CreatedBy)
	if err != nil {
		log.GetLogger().Errorf("Failed to create workflow: %v", err)
		http.Error(w, fmt.Sprintf("Failed to create workflow: %v", err), http.StatusInternalServerError)
		return
	}

	if req.Execute {
		timeout := defaultTimeout
		if req.TimeoutSeconds > 0 {
			timeout = time.Duration(req.TimeoutSeconds) * time.Second
		}
		wf, err = svc.Execute(r.Context(), wf.ID, timeout)
		if err != nil {
			log.GetLogger().Errorf("Failed to execute workflow %s: %v", wf.ID, err)
			http.Error(w, fmt.Sprintf("Failed to execute workflow: %v", err), http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusCreated, wf)
}

func listWorkflowsHTTP(w http.ResponseWriter, svc *service.WorkflowService) {
	workflows, err := svc.ListWorkflows()
	if err != nil {
		log.GetLogger().Errorf("Failed to list workflows: %v", err)
		http.Error(w, fmt.Sprintf("Failed to list workflows: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, workflows)
}

// WorkflowByIDHandler serves GET /workflows/{id}, POST /workflows/{id}/execute
// and GET /workflows/{id}/audit.
func WorkflowByIDHandler(svc *service.WorkflowService, defaultTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/workflows/"), "/"), "/")
		if len(parts) == 0 || parts[0] == "" {
			http.Error(w, "Missing workflow id", http.StatusBadRequest)
			return
		}
		id := parts[0]

		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			getWorkflowHTTP(w, svc, id)
		case len(parts) == 2 && parts[1] == "execute" && r.Method == http.MethodPost:
			executeWorkflowHTTP(w, r, svc, id, defaultTimeout)
		case len(parts) == 2 && parts[1] == "audit" && r.Method == http.MethodGet:
			auditTrailHTTP(w, svc, id)
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	}
}

func getWorkflowHTTP(w http.ResponseWriter, svc *service.WorkflowService, id string) {
	wf, err := svc.GetStatus(id)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, fmt.Sprintf("Workflow %s not found", id), http.StatusNotFound)
		return
	}
	if err != nil {
		log.GetLogger().Errorf("Failed to get workflow %s: %v", id, err)
		http.Error(w, fmt.Sprintf("Failed to get workflow: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func executeWorkflowHTTP(w http.ResponseWriter, r *http.Request, svc *service.WorkflowService, id string, defaultTimeout time.Duration) {
	timeout := defaultTimeout
	if raw := r.URL.Query().Get("timeout_seconds"); raw != "" {
		var seconds int
		if _, err := fmt.Sscanf(raw, "%d", &seconds); err != nil || seconds <= 0 {
			http.Error(w, "Invalid 'timeout_seconds'", http.StatusBadRequest)
			return
		}
		timeout = time.Duration(seconds) * time.Second
	}

	wf, err := svc.Execute(r.Context(), id, timeout)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, fmt.Sprintf("Workflow %s not found", id), http.StatusNotFound)
		return
	}
	if err != nil {
		log.GetLogger().Errorf("Failed to execute workflow %s: %v", id, err)
		http.Error(w, fmt.Sprintf("Failed to execute workflow: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func auditTrailHTTP(w http.ResponseWriter, svc *service.WorkflowService, id string) {
	events, err := svc.AuditTrail(id)
	if err != nil {
		log.GetLogger().Errorf("Failed to list audit events for workflow %s: %v", id, err)
		http.Error(w, fmt.Sprintf("Failed to list audit events: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}
