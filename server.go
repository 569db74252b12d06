package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"fieldsearch/internal/index"
)

// apiServer exposes the registry and its live indexes over HTTP.
type apiServer struct {
	registry  *index.Registry
	telemetry *telemetry
	logger    *slog.Logger

	mu      sync.RWMutex
	engines map[string]*indexEngine
	ready   atomic.Bool
}

// newAPIServer opens an empty engine for every definition the registry holds.
func newAPIServer(registry *index.Registry, tel *telemetry, logger *slog.Logger) (*apiServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &apiServer{
		registry:  registry,
		telemetry: tel,
		logger:    logger,
		engines:   make(map[string]*indexEngine),
	}

	for _, def := range registry.List() {
		if _, err := s.openEngine(def); err != nil {
			return nil, fmt.Errorf("open index %s: %w", def.Name, err)
		}
	}
	s.ready.Store(true)
	return s, nil
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/indexes", s.createIndex)
	mux.HandleFunc("GET /v1/indexes", s.listIndexes)
	mux.HandleFunc("GET /v1/indexes/{name}", s.describeIndex)
	mux.HandleFunc("DELETE /v1/indexes/{name}", s.deleteIndex)
	mux.HandleFunc("GET /v1/indexes/{name}/stats", s.indexStats)
	mux.HandleFunc("POST /v1/indexes/{name}/documents", s.addDocuments)
	mux.HandleFunc("GET /v1/indexes/{name}/documents/{id}", s.getDocument)
	mux.HandleFunc("PUT /v1/indexes/{name}/documents/{id}", s.replaceDocument)
	mux.HandleFunc("DELETE /v1/indexes/{name}/documents/{id}", s.removeDocument)
	mux.HandleFunc("GET /v1/search", s.search)
	mux.HandleFunc("GET /v1/health", s.health)
	mux.HandleFunc("GET /v1/ready", s.readiness)
	if s.telemetry != nil && s.telemetry.enabled {
		mux.HandleFunc("GET /v1/metrics", s.telemetry.handleMetrics)
	}
	return withJSONHeaders(mux)
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) openEngine(def index.Definition) (*indexEngine, error) {
	eng, err := newIndexEngine(def, s.telemetry, s.logger)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.engines[def.Name] = eng
	s.mu.Unlock()
	return eng, nil
}

func (s *apiServer) getEngine(name string) (*indexEngine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	eng, ok := s.engines[name]
	return eng, ok
}

// engineFor resolves the index named in the path, answering 404 itself when
// it is unknown.
func (s *apiServer) engineFor(w http.ResponseWriter, name string, start time.Time) (*indexEngine, bool) {
	eng, ok := s.getEngine(name)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("index %q not found", name), start)
	}
	return eng, ok
}

func (s *apiServer) createIndex(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req index.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json payload", start)
		return
	}

	def, err := s.registry.Create(req)
	if err != nil {
		respondError(w, httpStatusForError(err), err.Error(), start)
		return
	}
	if _, err := s.openEngine(def); err != nil {
		_ = s.registry.Delete(def.Name)
		respondError(w, httpStatusForError(err), err.Error(), start)
		return
	}

	s.logger.Info("index created", "index", def.Name, "fields", def.Fields, "tokenizer", def.Tokenizer)
	respond(w, http.StatusCreated, map[string]any{"index": def, "timingMs": time.Since(start).Milliseconds()})
}

func (s *apiServer) listIndexes(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	respond(w, http.StatusOK, map[string]any{"indexes": s.registry.List(), "timingMs": time.Since(start).Milliseconds()})
}

func (s *apiServer) describeIndex(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eng, ok := s.engineFor(w, r.PathValue("name"), start)
	if !ok {
		return
	}
	respond(w, http.StatusOK, map[string]any{"index": eng.def, "stats": eng.stats(), "timingMs": time.Since(start).Milliseconds()})
}

func (s *apiServer) deleteIndex(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := r.PathValue("name")

	if err := s.registry.Delete(name); err != nil {
		respondError(w, httpStatusForError(err), err.Error(), start)
		return
	}

	s.mu.Lock()
	delete(s.engines, name)
	s.mu.Unlock()
	if s.telemetry != nil {
		s.telemetry.forgetIndex(name)
	}

	s.logger.Info("index deleted", "index", name)
	respond(w, http.StatusOK, map[string]any{"deleted": name, "timingMs": time.Since(start).Milliseconds()})
}

func (s *apiServer) indexStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eng, ok := s.engineFor(w, r.PathValue("name"), start)
	if !ok {
		return
	}

	stats := eng.stats()
	respond(w, http.StatusOK, map[string]any{
		"name":      eng.def.Name,
		"docCount":  stats.Documents,
		"tokenizer": stats.Tokenizer,
		"fields":    stats.Fields,
		"timingMs":  time.Since(start).Milliseconds(),
	})
}

func (s *apiServer) addDocuments(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eng, ok := s.engineFor(w, r.PathValue("name"), start)
	if !ok {
		return
	}

	var payload struct {
		Documents []map[string]any `json:"documents"`
	}
	if err := decodeBody(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json payload", start)
		return
	}
	if len(payload.Documents) == 0 {
		respondError(w, http.StatusBadRequest, "no documents provided", start)
		return
	}

	indexed, errs := eng.indexDocuments(r.Context(), payload.Documents)
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, err.Error())
	}
	respond(w, batchStatus(indexed, errs), map[string]any{
		"indexed":  indexed,
		"errors":   messages,
		"timingMs": time.Since(start).Milliseconds(),
	})
}

func (s *apiServer) getDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eng, ok := s.engineFor(w, r.PathValue("name"), start)
	if !ok {
		return
	}

	doc, err := eng.getDocument(r.PathValue("id"))
	if err != nil {
		respondError(w, httpStatusForError(err), err.Error(), start)
		return
	}
	respond(w, http.StatusOK, map[string]any{"id": doc.ID, "source": doc.Source, "timingMs": time.Since(start).Milliseconds()})
}

// replaceDocument stores the body under the path id. A body id, when present,
// must name the same document.
func (s *apiServer) replaceDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eng, ok := s.engineFor(w, r.PathValue("name"), start)
	if !ok {
		return
	}
	id := r.PathValue("id")

	var doc map[string]any
	if err := decodeBody(r, &doc); err != nil || doc == nil {
		respondError(w, http.StatusBadRequest, "invalid json payload", start)
		return
	}
	if raw, present := doc["id"]; present {
		if bodyID, err := index.CanonicalID(raw); err != nil || bodyID != id {
			respondError(w, http.StatusBadRequest, "document id does not match path", start)
			return
		}
	} else {
		doc["id"] = id
	}

	if err := eng.replaceDocument(r.Context(), doc); err != nil {
		respondError(w, httpStatusForError(err), err.Error(), start)
		return
	}
	respond(w, http.StatusOK, map[string]any{"id": id, "timingMs": time.Since(start).Milliseconds()})
}

func (s *apiServer) removeDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eng, ok := s.engineFor(w, r.PathValue("name"), start)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if err := eng.removeDocument(r.Context(), id); err != nil {
		respondError(w, httpStatusForError(err), err.Error(), start)
		return
	}
	respond(w, http.StatusOK, map[string]any{"deleted": id, "timingMs": time.Since(start).Milliseconds()})
}

func (s *apiServer) search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	params := r.URL.Query()

	name := params.Get("index")
	if name == "" {
		respondError(w, http.StatusBadRequest, "index parameter is required", start)
		return
	}
	eng, ok := s.engineFor(w, name, start)
	if !ok {
		return
	}

	opts, withFields, err := searchOptions(params)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), start)
		return
	}

	query := params.Get("q")
	result := eng.search(r.Context(), query, opts, withFields)

	payload := map[string]any{
		"index":     name,
		"query":     query,
		"totalHits": result.Response.TotalHits,
		"results":   result.Response.Hits,
		"timingMs":  time.Since(start).Milliseconds(),
	}
	if withFields {
		payload["fields"] = result.Fields
	}
	respond(w, http.StatusOK, payload)
}

// searchOptions reads tag, all, offset, limit and fields from the query string.
func searchOptions(params url.Values) (index.SearchOptions, bool, error) {
	opts := index.SearchOptions{Tag: params.Get("tag")}

	var err error
	if opts.Offset, err = parseIntDefault(params.Get("offset"), 0); err != nil {
		return opts, false, fmt.Errorf("invalid offset: %w", err)
	}
	if opts.Limit, err = parseIntDefault(params.Get("limit"), 0); err != nil {
		return opts, false, fmt.Errorf("invalid limit: %w", err)
	}
	if opts.MatchAll, err = parseBoolDefault(params.Get("all"), false); err != nil {
		return opts, false, fmt.Errorf("invalid all: %w", err)
	}
	withFields, err := parseBoolDefault(params.Get("fields"), false)
	if err != nil {
		return opts, false, fmt.Errorf("invalid fields: %w", err)
	}
	return opts, withFields, nil
}

func (s *apiServer) health(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	respond(w, http.StatusOK, map[string]any{"status": "ok", "timingMs": time.Since(start).Milliseconds()})
}

// readiness reports ready once every registered definition has a live engine.
func (s *apiServer) readiness(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()

	s.mu.RLock()
	engines := len(s.engines)
	s.mu.RUnlock()
	registered := len(s.registry.List())

	status, state := http.StatusOK, "ready"
	if !s.ready.Load() || engines != registered {
		status, state = http.StatusServiceUnavailable, "initializing"
	}
	respond(w, status, map[string]any{
		"status":   state,
		"engines":  engines,
		"registry": registered,
		"timingMs": time.Since(start).Milliseconds(),
	})
}

// decodeBody keeps JSON numbers as json.Number so large integer ids stay exact.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

// batchStatus answers 200 when anything was indexed. A batch where nothing
// was accepted gets 409 when every failure is a duplicate id and 400 otherwise.
func batchStatus(indexed int, errs []error) int {
	if indexed > 0 {
		return http.StatusOK
	}
	for _, err := range errs {
		if !errors.Is(err, index.ErrDuplicateID) {
			return http.StatusBadRequest
		}
	}
	if len(errs) == 0 {
		return http.StatusBadRequest
	}
	return http.StatusConflict
}

func respond(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string, start time.Time) {
	respond(w, status, map[string]any{"error": message, "timingMs": time.Since(start).Milliseconds()})
}

func parseIntDefault(raw string, defaultVal int) (int, error) {
	if raw == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(raw)
}

func parseBoolDefault(raw string, defaultVal bool) (bool, error) {
	if raw == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(raw)
}

func httpStatusForError(err error) int {
	switch {
	case errors.Is(err, index.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, index.ErrDuplicateID), errors.Is(err, index.ErrIndexExists):
		return http.StatusConflict
	case errors.Is(err, index.ErrInvalidConfig), errors.Is(err, index.ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.Is(err, index.ErrIndexFull):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}
