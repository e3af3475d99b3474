package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"docmind/internal/access"
	"docmind/internal/auth"
	"docmind/internal/cache"
	"docmind/internal/config"
	"docmind/internal/docstore"
	"docmind/internal/extract"
	"docmind/internal/fetch"
	"docmind/internal/index"
	"docmind/internal/providers"
	"docmind/internal/rag"
	"docmind/internal/storage"
)

type Server struct {
	cfg      config.Config
	auth     *auth.Service
	docs     *docstore.Store
	history  *storage.HistoryRepo
	indexes  *cache.Store
	pm       *providers.Manager
	pipeline *rag.Pipeline
}

func NewServer(cfg config.Config, db *storage.DB) (*Server, error) {
	pm, err := providers.NewManager(cfg.LLMProviders, cfg.EmbedProviders, cfg.EmbedDim)
	if err != nil {
		return nil, err
	}
	searchOpts := index.SearchOptions{
		FetchK:         cfg.FetchK,
		Lambda:         cfg.MMRLambda,
		ScoreThreshold: cfg.ScoreThreshold,
	}
	history := storage.NewHistoryRepo(db)
	gen := rag.NewGenerator(pm.LLM(), time.Duration(cfg.GenTimeoutSecs)*time.Second, cfg.GenRetries, cfg.MaxAnswerToks)
	pipeline := rag.NewPipeline(gen, history, rag.Options{
		RetrieveK:   cfg.RetrieveK,
		ClassMarker: cfg.ClassMarker,
		ClassAnswer: cfg.ClassAnswer,
	})
	return &Server{
		cfg:      cfg,
		auth:     auth.NewService(storage.NewUserRepo(db)),
		docs:     docstore.New(cfg.DataRoot),
		history:  history,
		indexes:  cache.NewStore(cfg.IndexRoot, pm.Embedder(), searchOpts),
		pm:       pm,
		pipeline: pipeline,
	}, nil
}

func (s *Server) Providers() string { return s.pm.Describe() }

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/documents", s.handleDocuments)
	mux.HandleFunc("/documents/fetch", s.handleFetch)
	mux.HandleFunc("/documents/", s.handleDocumentScoped)
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/history", s.handleHistory)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("username and password are required"))
		return
	}
	if strings.Contains(req.Username, "/") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("username must not contain '/'"))
		return
	}
	role, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateUser) {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"username": req.Username, "role": role})
}

// identify authenticates the request via basic auth and resolves the
// caller's role. Requester and role travel explicitly from here into
// every downstream call; there is no ambient session state.
func (s *Server) identify(w http.ResponseWriter, r *http.Request) (string, access.Role, bool) {
	username, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="docmind"`)
		writeErr(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return "", "", false
	}
	valid, err := s.auth.Verify(r.Context(), username, password)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return "", "", false
	}
	if !valid {
		writeErr(w, http.StatusUnauthorized, fmt.Errorf("invalid credentials"))
		return "", "", false
	}
	role, err := s.auth.RoleOf(r.Context(), username)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return "", "", false
	}
	return username, role, true
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	username, role, ok := s.identify(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		refs, err := s.docs.ListAccessible(role, username)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": refs})
	case http.MethodPost:
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err))
			return
		}
		defer file.Close()
		if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("only PDF uploads are supported"))
			return
		}
		if _, err := s.docs.Save(username, header.Filename, file); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"document": username + "/" + filepath.Base(header.Filename)})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	username, _, ok := s.identify(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		URL      string `json:"url"`
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if req.URL == "" || req.Filename == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("url and filename are required"))
		return
	}
	if !strings.EqualFold(filepath.Ext(req.Filename), ".pdf") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("only PDF downloads are supported"))
		return
	}
	dir, err := s.docs.DirFor(username)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if _, err := fetch.Download(r.Context(), req.URL, dir, req.Filename); err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"document": username + "/" + filepath.Base(req.Filename)})
}

func (s *Server) handleDocumentScoped(w http.ResponseWriter, r *http.Request) {
	_, role, ok := s.identify(w, r)
	if !ok {
		return
	}
	ref := strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/")
	if ref == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodDelete {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if err := s.docs.Delete(ref, role); err != nil {
		writeMappedErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": ref})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	username, role, ok := s.identify(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Document string `json:"document"`
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Document == "" || req.Question == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("document and question are required"))
		return
	}

	result, err := s.answer(r.Context(), username, role, req.Document, req.Question)
	if err != nil {
		writeMappedErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// answer wires the core flow: access-checked resolution, extraction,
// content-addressed index lookup, then the staged answer pipeline.
func (s *Server) answer(ctx context.Context, username string, role access.Role, document, question string) (rag.Result, error) {
	path, err := s.docs.Resolve(document, role, username)
	if err != nil {
		return rag.Result{}, err
	}
	pages, err := extract.Pages(path)
	if err != nil {
		return rag.Result{}, err
	}
	fingerprint, err := cache.FingerprintFile(path)
	if err != nil {
		return rag.Result{}, err
	}
	ix, err := s.indexes.Get(ctx, fingerprint, func(ctx context.Context) (*index.Index, error) {
		chunks := index.ChunkPages(pages, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
		return index.Build(ctx, chunks, s.pm.Embedder(), s.cfg.EmbedDim, index.SearchOptions{
			FetchK:         s.cfg.FetchK,
			Lambda:         s.cfg.MMRLambda,
			ScoreThreshold: s.cfg.ScoreThreshold,
		})
	})
	if err != nil {
		return rag.Result{}, err
	}
	return s.pipeline.Answer(ctx, username, document, question, ix, pages)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	username, _, ok := s.identify(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	limit := s.cfg.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	records, err := s.history.Recent(r.Context(), username, limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}
