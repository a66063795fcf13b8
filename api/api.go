// Package api exposes the workflow backend over HTTP: workflow CRUD and
// validation, the skill catalog, synchronous and streaming execution,
// execution queries, and n8n import. Responses are JSON; the streaming
// execute endpoint emits server-sent events.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"goa.design/clue/health"

	"github.com/sadadonline17-oss/ai-manus-unified/importer/n8n"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/skill"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/telemetry"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/workflow"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/workflow/runner"
)

type (
	// Options configures the HTTP service.
	Options struct {
		// Manager owns workflow persistence and execution. Required.
		Manager *runner.Manager
		// Registry is the skill catalog served by the skills endpoints.
		// Required.
		Registry *skill.Registry
		// Logger receives request-scoped diagnostics. Defaults to a no-op
		// logger.
		Logger telemetry.Logger
		// Pingers are health-checked dependencies reported by /health.
		Pingers []health.Pinger
	}

	// Service is the HTTP front end of the workflow backend.
	Service struct {
		manager  *runner.Manager
		registry *skill.Registry
		parser   *n8n.Parser
		logger   telemetry.Logger
		pingers  []health.Pinger
	}
)

// New builds the HTTP service.
func New(opts Options) (*Service, error) {
	if opts.Manager == nil {
		return nil, errors.New("manager is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Service{
		manager:  opts.Manager,
		registry: opts.Registry,
		parser:   n8n.NewParser(),
		logger:   logger,
		pingers:  opts.Pingers,
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/", s.info)
	r.Method(http.MethodGet, "/health", health.Handler(health.NewChecker(s.pingers...)))

	r.Route("/api", func(r chi.Router) {
		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.listWorkflows)
			r.Post("/", s.createWorkflow)
			r.Post("/validate", s.validateWorkflow)

			r.Route("/skills", func(r chi.Router) {
				r.Get("/", s.listSkills)
				r.Get("/categories", s.listSkillCategories)
				r.Get("/{skillID}", s.getSkill)
			})

			r.Route("/import/n8n", func(r chi.Router) {
				r.Post("/", s.importN8N)
				r.Post("/preview", s.previewN8N)
			})

			r.Route("/{workflowID}", func(r chi.Router) {
				r.Get("/", s.getWorkflow)
				r.Put("/", s.updateWorkflow)
				r.Delete("/", s.deleteWorkflow)
				r.Get("/export", s.exportWorkflow)
				r.Post("/execute", s.executeWorkflow)
				r.Post("/execute/stream", s.executeWorkflowStream)
			})
		})

		r.Route("/executions", func(r chi.Router) {
			r.Get("/", s.listExecutions)
			r.Get("/{executionID}", s.getExecution)
			r.Post("/{executionID}/cancel", s.cancelExecution)
		})
	})

	return r
}

func (s *Service) info(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"service": "ai-manus-unified",
		"status":  "ok",
	})
}

func (s *Service) createWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf workflow.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("decode workflow: %s", err))
		return
	}
	if errs := workflow.Validate(&wf); len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}
	id, err := s.manager.SaveWorkflow(r.Context(), &wf)
	if err != nil {
		s.logger.Error(r.Context(), "create workflow failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"workflow_id": id,
		"workflow":    &wf,
	})
}

func (s *Service) updateWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf workflow.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("decode workflow: %s", err))
		return
	}
	wf.ID = chi.URLParam(r, "workflowID")
	if errs := workflow.Validate(&wf); len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}
	if _, err := s.manager.SaveWorkflow(r.Context(), &wf); err != nil {
		s.logger.Error(r.Context(), "update workflow failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"workflow_id": wf.ID,
		"workflow":    &wf,
	})
}

func (s *Service) getWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.manager.GetWorkflow(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, wf)
}

func (s *Service) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workflowID")
	deleted, err := s.manager.DeleteWorkflow(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, fmt.Sprintf("workflow not found: %s", id))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Service) listWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.manager.ListWorkflows(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"workflows": workflows,
		"count":     len(workflows),
	})
}

func (s *Service) validateWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf workflow.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("decode workflow: %s", err))
		return
	}
	errs := workflow.Validate(&wf)
	if errs == nil {
		errs = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"valid":  len(errs) == 0,
		"errors": errs,
	})
}

func (s *Service) exportWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.manager.GetWorkflow(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, wf)
}

func (s *Service) executeWorkflow(w http.ResponseWriter, r *http.Request) {
	initial, err := decodeInitialContext(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	exec, err := s.manager.RunWorkflow(r.Context(), chi.URLParam(r, "workflowID"), initial)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, exec.Snapshot())
}

func (s *Service) executeWorkflowStream(w http.ResponseWriter, r *http.Request) {
	initial, err := decodeInitialContext(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	updates, err := s.manager.RunWorkflowStream(r.Context(), chi.URLParam(r, "workflowID"), initial)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for upd := range updates {
		data, err := json.Marshal(upd)
		if err != nil {
			s.logger.Warn(r.Context(), "marshal stream update failed", "error", err.Error())
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

func (s *Service) listExecutions(w http.ResponseWriter, r *http.Request) {
	execs := s.manager.Runner().ListExecutions(r.URL.Query().Get("workflow_id"))
	respondJSON(w, http.StatusOK, map[string]any{
		"executions": execs,
		"count":      len(execs),
	})
}

func (s *Service) getExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "executionID")
	exec, ok := s.manager.Runner().GetExecution(id)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("execution not found: %s", id))
		return
	}
	respondJSON(w, http.StatusOK, exec)
}

func (s *Service) cancelExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "executionID")
	if !s.manager.Runner().CancelExecution(id) {
		respondError(w, http.StatusNotFound, fmt.Sprintf("execution not found: %s", id))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

func (s *Service) listSkills(w http.ResponseWriter, r *http.Request) {
	defs := s.registry.ListAll()
	out := make([]skillDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, toSkillDefinition(d))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"skills": out,
		"count":  len(out),
	})
}

func (s *Service) listSkillCategories(w http.ResponseWriter, r *http.Request) {
	byCategory := make(map[string][]skillDefinition)
	for _, d := range s.registry.ListAll() {
		byCategory[string(d.Category)] = append(byCategory[string(d.Category)], toSkillDefinition(d))
	}
	respondJSON(w, http.StatusOK, map[string]any{"categories": byCategory})
}

func (s *Service) getSkill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "skillID")
	def, ok := s.registry.Definition(id)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("Skill not found: %s", id))
		return
	}
	respondJSON(w, http.StatusOK, toSkillDefinition(def))
}

func (s *Service) importN8N(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	wf, err := s.parser.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := workflow.Validate(wf); len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}
	id, err := s.manager.SaveWorkflow(r.Context(), wf)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"workflow_id": id,
		"workflow":    wf,
	})
}

func (s *Service) previewN8N(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	wf, err := s.parser.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	errs := workflow.Validate(wf)
	if errs == nil {
		errs = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"workflow": wf,
		"valid":    len(errs) == 0,
		"errors":   errs,
	})
}

// decodeInitialContext reads the optional initial execution context from the
// request body. An empty body means no initial context.
func decodeInitialContext(r *http.Request) (map[string]any, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var body struct {
		Context map[string]any `json:"context"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	return body.Context, nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]any{"error": msg})
}
