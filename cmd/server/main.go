package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/cfortin/triage/engine"
	"github.com/cfortin/triage/internal/logger"
	"github.com/cfortin/triage/manager"
	"github.com/cfortin/triage/tree"
)

type Server struct {
	db       *sql.DB
	store    tree.Store
	cache    tree.Cache
	engines  *manager.Manager
	router   *chi.Mux
}

// NewServer builds a server on any tree store. Used directly by tests
// with an in-memory store.
func NewServer(store tree.Store) *Server {
	s := &Server{
		store:   store,
		cache:   tree.NewInMemoryCache(tree.DefaultCacheConfig()),
		engines: manager.New(store),
	}
	s.setupRoutes()
	return s
}

// NewServerWithDB connects to Postgres, loads every stored tree and
// compiles its engine up front.
func NewServerWithDB(databaseURL string) (*Server, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewServer(tree.NewPostgresStore(db))
	s.db = db

	logger.Info("loading trees from database")
	if err := s.engines.LoadAll(); err != nil {
		logger.Warn("some trees failed to compile", "error", err)
	}
	logger.Info("trees loaded", "count", len(s.engines.List()))

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/api/v1/health", s.handleHealth)

	// Evaluation
	r.Post("/api/v1/evaluate", s.handleEvaluate)
	r.Post("/api/v1/evaluate/batch", s.handleEvaluateBatch)

	// Tree management
	r.Route("/api/v1/trees", func(r chi.Router) {
		r.Get("/", s.handleListTrees)
		r.Post("/", s.handleCreateTree)

		r.Route("/{treeId}", func(r chi.Router) {
			r.Get("/", s.handleGetTree)
			r.Put("/", s.handleUpdateTree)
			r.Delete("/", s.handleDeleteTree)

			r.Post("/validate", s.handleValidateTree)
			r.Get("/fields", s.handleTreeFields)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"treesLoaded": len(s.engines.List()),
	})
}

// Single-record evaluation handler
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.TreeID == "" {
		respondError(w, http.StatusBadRequest, "tree_id is required", nil)
		return
	}

	ct, err := s.engines.Get(req.TreeID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tree not found", err)
		return
	}

	result := ct.Engine.Evaluate(&req.Record, req.Lookups, req.IncludePath)
	respondJSON(w, http.StatusOK, result)
}

// Batch evaluation handler
func (s *Server) handleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchEvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.TreeID == "" {
		respondError(w, http.StatusBadRequest, "tree_id is required", nil)
		return
	}
	if len(req.Records) == 0 {
		respondError(w, http.StatusBadRequest, "records are required", nil)
		return
	}

	ct, err := s.engines.Get(req.TreeID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tree not found", err)
		return
	}

	processor, err := engine.NewBatchProcessor(&ct.Tree.Structure, req.ChunkSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to prepare batch", err)
		return
	}

	startTime := time.Now()
	resp, err := processor.Process(r.Context(), req.Records, req.Lookups, req.IncludePath)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "batch evaluation failed", err)
		return
	}

	logger.Info("batch evaluated",
		"tree_id", req.TreeID,
		"total", resp.Total,
		"errors", resp.ErrorCount,
		"duration", time.Since(startTime).String())

	respondJSON(w, http.StatusOK, resp)
}

// List trees handler
func (s *Server) handleListTrees(w http.ResponseWriter, r *http.Request) {
	if cached := s.cache.Get(); cached != nil {
		respondJSON(w, http.StatusOK, map[string]any{"trees": cached})
		return
	}

	trees, err := s.store.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list trees", err)
		return
	}
	s.cache.Set(trees)

	respondJSON(w, http.StatusOK, map[string]any{"trees": trees})
}

// Create tree handler
func (s *Server) handleCreateTree(w http.ResponseWriter, r *http.Request) {
	var req TreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	t := &tree.Tree{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Structure:   req.Structure,
		IsDefault:   req.IsDefault,
	}

	if err := s.store.Add(t); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create tree", err)
		return
	}
	s.cache.Invalidate()

	if err := s.engines.Update(t); err != nil {
		logger.Warn("stored tree does not compile", "tree_id", t.ID, "error", err)
	}

	respondJSON(w, http.StatusCreated, t)
}

// Get tree handler
func (s *Server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	treeID := chi.URLParam(r, "treeId")

	t, err := s.store.Get(treeID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tree not found", err)
		return
	}

	respondJSON(w, http.StatusOK, t)
}

// Update tree handler
func (s *Server) handleUpdateTree(w http.ResponseWriter, r *http.Request) {
	treeID := chi.URLParam(r, "treeId")

	var req TreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	t := &tree.Tree{
		ID:          treeID,
		Name:        req.Name,
		Description: req.Description,
		Structure:   req.Structure,
		IsDefault:   req.IsDefault,
	}

	if err := s.store.Update(t); err != nil {
		respondError(w, http.StatusNotFound, "tree not found", err)
		return
	}
	s.cache.Invalidate()

	if err := s.engines.Update(t); err != nil {
		logger.Warn("updated tree does not compile", "tree_id", treeID, "error", err)
	}

	respondJSON(w, http.StatusOK, t)
}

// Delete tree handler
func (s *Server) handleDeleteTree(w http.ResponseWriter, r *http.Request) {
	treeID := chi.URLParam(r, "treeId")

	if err := s.store.Delete(treeID); err != nil {
		respondError(w, http.StatusNotFound, "tree not found", err)
		return
	}
	s.cache.Invalidate()
	s.engines.Remove(treeID)

	w.WriteHeader(http.StatusNoContent)
}

// Validate tree handler. Accepts either a structure in the body or, on
// an empty body, validates the stored tree.
func (s *Server) handleValidateTree(w http.ResponseWriter, r *http.Request) {
	treeID := chi.URLParam(r, "treeId")

	var structure *tree.Structure
	var body struct {
		Structure *tree.Structure `json:"structure"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Structure != nil {
		structure = body.Structure
	}

	if structure == nil {
		t, err := s.store.Get(treeID)
		if err != nil {
			respondError(w, http.StatusNotFound, "tree not found", err)
			return
		}
		structure = &t.Structure
	}

	warnings := engine.ValidateStructure(structure)
	if warnings == nil {
		warnings = []string{}
	}

	respondJSON(w, http.StatusOK, ValidateResponse{
		Valid:    len(warnings) == 0,
		Warnings: warnings,
	})
}

// Tree fields handler: reports the record fields and lookup tables a
// tree depends on so callers can pre-fetch exactly what is needed.
func (s *Server) handleTreeFields(w http.ResponseWriter, r *http.Request) {
	treeID := chi.URLParam(r, "treeId")

	ct, err := s.engines.Get(treeID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tree not found", err)
		return
	}

	respondJSON(w, http.StatusOK, FieldsResponse{
		RequiredFields: sortedKeys(ct.Engine.RequiredFields()),
		LookupTables:   sortedKeys(ct.Engine.LookupTables()),
	})
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Fatal("DATABASE_URL environment variable is required")
	}

	server, err := NewServerWithDB(databaseURL)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	defer server.db.Close()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
