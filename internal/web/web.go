// Package web exposes the event store and occurrence engine over a JSON
// HTTP API and serves the embedded static UI.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"simplecal/internal/attach"
	"simplecal/internal/backup"
	"simplecal/internal/caldate"
	"simplecal/internal/capture"
	"simplecal/internal/config"
	"simplecal/internal/invite"
	appLog "simplecal/internal/log"
	"simplecal/internal/model"
	"simplecal/internal/occur"
	"simplecal/internal/store"
)

const maxRequestBody = 32 << 20 // attachments arrive inline as data URIs

// Server provides the HTTP API over the store and engine.
type Server struct {
	cfg    *config.Config
	store  *store.Store
	backup *backup.Runner
	router *mux.Router
	debug  bool

	// Occurrence responses are cached per query string and invalidated
	// wholesale whenever the store notifies a mutation. cacheGen counts
	// invalidations so a fill computed against pre-mutation state is
	// discarded instead of resurrecting it.
	cacheMu  sync.Mutex
	cache    map[string][]byte
	cacheGen uint64
}

// embeddedStatic contains the exported static UI build.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a Server and subscribes it to store notifications so
// cached projections never outlive a mutation.
func NewServer(cfg *config.Config, st *store.Store, bk *backup.Runner, debug bool) *Server {
	s := &Server{
		cfg:    cfg,
		store:  st,
		backup: bk,
		router: mux.NewRouter(),
		debug:  debug,
		cache:  map[string][]byte{},
	}
	st.Subscribe(s.invalidateCache)
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler, wrapped with basic auth when
// configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or hash counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.PasswordHash != ""
}

// basicAuthMiddleware wraps all handlers except /health. The password is
// verified against the bcrypt hash from the config file.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	hash := []byte(s.cfg.BasicAuth.PasswordHash)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		userOK := ok && subtle.ConstantTimeCompare([]byte(u), []byte(username)) == 1
		passOK := ok && bcrypt.CompareHashAndPassword(hash, []byte(p)) == nil
		if !userOK || !passOK {
			w.Header().Set("WWW-Authenticate", `Basic realm="simplecal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerRoutes() {
	r := s.router

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/events", s.handleListEvents).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleCreateEvent).Methods(http.MethodPost)
	api.HandleFunc("/events/{id}", s.handleGetEvent).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}", s.handleUpdateEvent).Methods(http.MethodPut)
	api.HandleFunc("/events/{id}", s.handleDeleteEvent).Methods(http.MethodDelete)
	api.HandleFunc("/events/{id}/discussion", s.handleAppendDiscussion).Methods(http.MethodPost)
	api.HandleFunc("/events/{id}/attachments", s.handleUploadAttachments).Methods(http.MethodPost)
	api.HandleFunc("/events/{id}/invites", s.handleInvites).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}/ics", s.handleICS).Methods(http.MethodGet)
	api.HandleFunc("/occurrences", s.handleOccurrences).Methods(http.MethodGet)
	api.HandleFunc("/import", s.handleImport).Methods(http.MethodGet)
	api.HandleFunc("/theme", s.handleGetTheme).Methods(http.MethodGet)
	api.HandleFunc("/theme", s.handleSetTheme).Methods(http.MethodPut)
	api.HandleFunc("/backup", s.handleBackup).Methods(http.MethodPost)
	api.HandleFunc("/render", s.handleRender).Methods(http.MethodPost)

	r.HandleFunc("/preview.png", s.handlePreview).Methods(http.MethodGet)

	// Static UI; everything that is not /api/* falls back here.
	r.PathPrefix("/").Handler(s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// --- Events CRUD ---

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Events())
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	patch, ok := decodePatch(w, r)
	if !ok {
		return
	}
	ev, err := s.store.Create(patch)
	if err != nil {
		appLog.Error("create event failed", err)
		writeError(w, http.StatusInternalServerError, "failed to persist event")
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.store.GetByID(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleUpdateEvent mirrors the store's fail-silently policy: an unknown id
// is not an error, the update just has no effect.
func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	patch, ok := decodePatch(w, r)
	if !ok {
		return
	}
	if err := s.store.Update(mux.Vars(r)["id"], patch); err != nil {
		appLog.Error("update event failed", err)
		writeError(w, http.StatusInternalServerError, "failed to persist event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(mux.Vars(r)["id"]); err != nil {
		appLog.Error("delete event failed", err)
		writeError(w, http.StatusInternalServerError, "failed to persist collection")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAppendDiscussion(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Sender  string `json:"sender"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.store.AppendDiscussionMessage(mux.Vars(r)["id"], body.Sender, body.Message); err != nil {
		appLog.Error("append discussion failed", err)
		writeError(w, http.StatusInternalServerError, "failed to persist message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadAttachments ingests multipart uploads into data-URI
// attachments appended to the event. All file reads run concurrently and
// are awaited jointly; the stored order matches the upload order.
func (s *Server) handleUploadAttachments(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.store.GetByID(id); !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	if err := r.ParseMultipartForm(maxRequestBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	var files []attach.File
	var closers []interface{ Close() error }
	for _, headers := range r.MultipartForm.File {
		for _, hdr := range headers {
			f, err := hdr.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "unreadable upload")
				return
			}
			closers = append(closers, f)
			files = append(files, attach.File{
				Name:   filepath.Base(hdr.Filename),
				Type:   hdr.Header.Get("Content-Type"),
				Reader: f,
			})
		}
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	atts, err := attach.ReadAll(files, attach.DefaultMaxFileSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploads")
		return
	}

	// The store appends under its own lock; two simultaneous uploads to the
	// same event both land instead of the last writer winning.
	if err := s.store.AppendAttachments(id, atts); err != nil {
		appLog.Error("persist attachments failed", err)
		writeError(w, http.StatusInternalServerError, "failed to persist attachments")
		return
	}
	writeJSON(w, http.StatusOK, atts)
}

// --- Occurrences ---

// handleOccurrences expands a day window.
//
// GET /api/occurrences?date=2024-05-01&days=7&types=event,task
//   - date:  first day of the window (default today)
//   - days:  window length (default 1)
//   - types: visible entry types (default both)
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start := caldate.FromTime(time.Now())
	if ds := q.Get("date"); ds != "" {
		parsed, err := caldate.Parse(ds)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
		start = parsed
	}
	days := parseIntDefault(q.Get("days"), 1)
	if days < 1 {
		days = 1
	}
	filters := parseFilters(q.Get("types"))

	cacheKey := start.String() + "|" + strconv.Itoa(days) + "|" + q.Get("types")
	cached, gen, ok := s.cachedResponse(cacheKey)
	if ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	result := occur.ForRange(s.store.Events(), start, days, filters)
	payload, err := json.Marshal(result)
	if err != nil {
		appLog.Error("encode occurrences failed", err)
		writeError(w, http.StatusInternalServerError, "failed to encode occurrences")
		return
	}

	s.storeCachedResponse(cacheKey, gen, payload)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// cachedResponse returns the cached payload for key, along with the current
// invalidation generation a filler must present to storeCachedResponse.
func (s *Server) cachedResponse(key string) ([]byte, uint64, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	payload, ok := s.cache[key]
	return payload, s.cacheGen, ok
}

// storeCachedResponse caches payload unless an invalidation happened since
// gen was read. The store snapshot behind a stale payload predates the
// mutation, so writing it would serve pre-mutation state until the next one.
func (s *Server) storeCachedResponse(key string, gen uint64, payload []byte) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheGen != gen {
		return
	}
	s.cache[key] = payload
}

// invalidateCache is the store-subscriber hook: any mutation drops every
// cached projection and advances the generation so in-flight fills are
// discarded.
func (s *Server) invalidateCache() {
	s.cacheMu.Lock()
	s.cache = map[string][]byte{}
	s.cacheGen++
	s.cacheMu.Unlock()
}

// parseFilters interprets the types= parameter; absent means "show all".
func parseFilters(raw string) occur.Filters {
	if raw == "" {
		return occur.DefaultFilters()
	}
	var f occur.Filters
	for _, part := range strings.Split(raw, ",") {
		switch model.EventType(strings.TrimSpace(part)) {
		case model.TypeEvent:
			f.Events = true
		case model.TypeTask:
			f.Tasks = true
		}
	}
	return f
}

// --- Import & invites ---

// handleImport decodes a shared event blob into a creation prefill. The
// payload never auto-commits; the client decides whether to save it. Decode
// failures are logged and answered with 400, never fatal.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data := r.URL.Query().Get("data")
	if data == "" {
		writeError(w, http.StatusBadRequest, "missing data parameter")
		return
	}
	patch, err := invite.DecodeImport(data)
	if err != nil {
		appLog.Error("import decode failed", err)
		writeError(w, http.StatusBadRequest, "invalid import payload")
		return
	}
	writeJSON(w, http.StatusOK, patch)
}

type participantInvite struct {
	Name   string `json:"name"`
	Mailto string `json:"mailto,omitempty"`
	SMS    string `json:"sms,omitempty"`
}

type invitesResponse struct {
	GoogleCalendar string              `json:"googleCalendar"`
	ImportURL      string              `json:"importUrl"`
	Participants   []participantInvite `json:"participants"`
}

func (s *Server) handleInvites(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.store.GetByID(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	base := s.publicBaseURL()
	importURL, err := invite.ImportURL(base, ev)
	if err != nil {
		appLog.Error("build import url failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build links")
		return
	}

	resp := invitesResponse{
		GoogleCalendar: invite.GoogleCalendarURL(ev),
		ImportURL:      importURL,
	}
	for _, p := range ev.Participants {
		pi := participantInvite{Name: p.Name}
		if p.Email != "" {
			if u, err := invite.MailtoURL(base, p, ev); err == nil {
				pi.Mailto = u
			}
		}
		if p.Phone != "" {
			if u, err := invite.SMSURL(base, p, ev); err == nil {
				pi.SMS = u
			}
		}
		resp.Participants = append(resp.Participants, pi)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.store.GetByID(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	payload, err := invite.EventICS(ev)
	if err != nil {
		appLog.Error("ics export failed", err, "id", ev.ID)
		writeError(w, http.StatusInternalServerError, "failed to build ICS")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="event.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(payload))
}

func (s *Server) publicBaseURL() string {
	if s.cfg.PublicURL != "" {
		return s.cfg.PublicURL
	}
	return "http://" + s.cfg.Listen + "/"
}

// --- Theme ---

func (s *Server) handleGetTheme(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"theme": s.store.Theme()})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Theme != "dark" && body.Theme != "light" {
		writeError(w, http.StatusBadRequest, "theme must be dark or light")
		return
	}
	if err := s.store.SetTheme(body.Theme); err != nil {
		appLog.Error("persist theme failed", err)
		writeError(w, http.StatusInternalServerError, "failed to persist theme")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Backup & preview ---

func (s *Server) handleBackup(w http.ResponseWriter, _ *http.Request) {
	if s.backup == nil {
		writeError(w, http.StatusServiceUnavailable, "backups not configured")
		return
	}
	path, err := s.backup.RunOnce()
	if err != nil {
		appLog.Error("manual backup failed", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// handleRender captures the month view into preview.png. The headless
// browser loads the UI from this same server over loopback, so the capture
// runs on its own context rather than the request's; a client disconnect
// must not abort a render already in progress.
func (s *Server) handleRender(w http.ResponseWriter, _ *http.Request) {
	opts := capture.Options{
		URL:        "http://" + s.cfg.Listen + "/",
		OutputPath: s.previewPath(),
	}
	if err := capture.MonthViewPNG(context.Background(), opts); err != nil {
		appLog.Error("preview render failed", err)
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": "/preview.png"})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	// ServeFile answers 404 for a missing render on its own.
	http.ServeFile(w, r, s.previewPath())
}

func (s *Server) previewPath() string {
	if s.debug {
		return "./cache/preview.png"
	}
	return filepath.Join(s.cfg.DataDir, "preview.png")
}

// --- Static UI ---

func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /api/* must never fall through to HTML.
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// --- Helpers ---

func decodePatch(w http.ResponseWriter, r *http.Request) (model.EventPatch, bool) {
	var patch model.EventPatch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return model.EventPatch{}, false
	}
	return patch, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
