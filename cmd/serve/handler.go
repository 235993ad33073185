package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/allmhq/allm"
	"github.com/allmhq/allm/backend"
)

var validate = validator.New()

// promptRequest is the body of POST /v1/prompt.
type promptRequest struct {
	Prompt string `json:"prompt" validate:"required"`
	Model  string `json:"model,omitempty"`
}

// promptResponse is the body of a successful prompt.
type promptResponse struct {
	Response string `json:"response"`
}

// keySpec is one entry of PUT /v1/keys.
type keySpec struct {
	Provider string `json:"provider" validate:"required"`
	Model    string `json:"model,omitempty"`
	Key      string `json:"key"`
}

type keysRequest struct {
	Keys []keySpec `json:"keys" validate:"required,min=1,dive"`
}

// candidateSpec is one entry of PUT /v1/fallback.
type candidateSpec struct {
	Provider string `json:"provider" validate:"required"`
	Model    string `json:"model" validate:"required"`
}

type fallbackRequest struct {
	Candidates []candidateSpec `json:"candidates" validate:"required,dive"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type modelsResponse struct {
	Providers map[string]providerModels `json:"providers"`
}

type providerModels struct {
	Models []string `json:"models,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type server struct {
	backend *backend.Backend
	log     *zap.Logger
}

func newRouter(b *backend.Backend, log *zap.Logger) http.Handler {
	s := &server{backend: b, log: log.Named("http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/prompt", s.handlePrompt)
		r.Put("/keys", s.handleSetKeys)
		r.Get("/models", s.handleModels)
		r.Put("/fallback", s.handleSetFallback)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if !s.decode(w, r, &req) {
		return
	}

	future, err := s.backend.SendPrompt(req.Prompt, req.Model)
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := future.Await(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, promptResponse{Response: result})
}

func (s *server) handleSetKeys(w http.ResponseWriter, r *http.Request) {
	var req keysRequest
	if !s.decode(w, r, &req) {
		return
	}

	specs := make([]allm.APIKeySpec, 0, len(req.Keys))
	for _, k := range req.Keys {
		p, ok := allm.ParseProvider(k.Provider)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown provider: " + k.Provider})
			return
		}
		specs = append(specs, allm.APIKeySpec{Provider: p, Model: k.Model, Key: k.Key})
	}

	ack, err := s.backend.SetAPIKeys(specs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := ack.Await(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleModels(w http.ResponseWriter, r *http.Request) {
	future, err := s.backend.GetModelLists()
	if err != nil {
		s.writeError(w, err)
		return
	}
	lists, err := future.Await(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := modelsResponse{Providers: make(map[string]providerModels, len(lists))}
	for p, pm := range lists {
		entry := providerModels{Models: pm.Models}
		if pm.Err != nil {
			entry.Error = pm.Err.Error()
		}
		resp.Providers[p.String()] = entry
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleSetFallback(w http.ResponseWriter, r *http.Request) {
	var req fallbackRequest
	if !s.decode(w, r, &req) {
		return
	}

	candidates := make([]allm.Candidate, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		p, ok := allm.ParseProvider(c.Provider)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown provider: " + c.Provider})
			return
		}
		candidates = append(candidates, allm.Candidate{Provider: p, Model: c.Model})
	}

	ack, err := s.backend.SetModelFallbackPreference(candidates)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := ack.Await(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode parses and validates the request body, writing the 400 itself
// on failure.
func (s *server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	kind := allm.KindOf(err)

	switch kind {
	case allm.KindKeyNotFound:
		status = http.StatusUnauthorized
	case allm.KindTimeout:
		status = http.StatusGatewayTimeout
	case allm.KindShutdownInProgress, allm.KindActorUnavailable:
		status = http.StatusServiceUnavailable
	case allm.KindInvalidConfiguration:
		status = http.StatusBadRequest
	}

	s.log.Warn("request failed", zap.String("kind", string(kind)), zap.Error(err))
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
