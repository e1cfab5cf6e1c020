package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"journal/api/internal/auth"
	"journal/api/internal/export"
	"journal/api/internal/guard"
	"journal/api/internal/journal"
	"journal/api/internal/metrics"
	"journal/api/internal/session"
	"journal/api/internal/store"
	"journal/api/internal/workflow"
)

// Sessions hands out the session store of a browser client.
type Sessions interface {
	Get(ctx context.Context, key string) (*session.Store, error)
	Drop(key string)
}

type HTTPConfig struct {
	CORSOrigin    string
	SessionCookie string
	SecureCookie  bool
	LoginPath     string
	RateLimit     rate.Limit
	RateBurst     int
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

type HTTPServer struct {
	service  *Service
	sessions Sessions
	cfg      HTTPConfig
	limiter  *rateLimiter
	metrics  metrics.Recorder
	log      *zap.Logger
}

const sessionCookieMaxAge = 30 * 24 * 60 * 60

func NewHTTPServer(service *Service, sessions Sessions, cfg HTTPConfig) *HTTPServer {
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = "journal_client"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = guard.DefaultLoginPath
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 60
	}
	return &HTTPServer{
		service:  service,
		sessions: sessions,
		cfg:      cfg,
		limiter:  newRateLimiter(cfg.RateLimit, cfg.RateBurst),
		metrics:  service.metrics,
		log:      service.log,
	}
}

// Close stops background work owned by the server.
func (s *HTTPServer) Close() {
	s.limiter.Stop()
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLog, s.recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.withActor)
		r.Use(s.limiter.middleware(s.log))

		r.Route("/api/session", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/", s.handleSetSession)
			r.Delete("/", s.handleSignOut)
		})

		r.Get("/api/home", s.handleHome)
		r.Get("/api/search", s.handleSearch)
		r.Post("/api/markdown", s.handleMarkdown)
		r.Get("/api/usernames/available", s.handleUsernameAvailable)

		r.Route("/api/submissions", func(r chi.Router) {
			r.Get("/", s.handleListSubmissions)
			r.Post("/", s.handleCreateSubmission)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSubmission)
				r.Put("/", s.handleUpdateSubmission)
				r.Post("/decision", s.handleDecision)
				r.Get("/history", s.handleHistory)
				r.Get("/history/{ref}", s.handleVersion)
				r.Get("/export.pdf", s.handleExport)
				r.Get("/comments", s.handleListComments)
				r.Post("/comments", s.handleCreateComment)
				r.Get("/slots", s.handleListSlots)
				r.Route("/review-opinions", func(r chi.Router) {
					r.Get("/", s.handleReviewThread)
					r.Post("/", s.handleCreateOpinion)
					r.Post("/{opinionID}/replies", s.handleReply)
					r.Post("/{opinionID}/close", s.handleCloseOpinion)
					r.Put("/{opinionID}/author-reply", s.handleAuthorReply)
				})
			})
		})

		r.Route("/api/slots/{slotID}", func(r chi.Router) {
			r.Post("/claim", s.handleClaimSlot)
			r.Post("/expire", s.handleExpireSlot)
			r.Post("/complete", s.handleCompleteSlot)
		})

		r.Route("/api/me", func(r chi.Router) {
			r.Get("/submissions", s.handleMySubmissions)
			r.Get("/review-opinions", s.handleMyReviewOpinions)
		})

		r.Route("/api/announcements", func(r chi.Router) {
			r.Get("/", s.handleListAnnouncements)
			r.Post("/", s.handleCreateAnnouncement)
			r.Put("/{id}", s.handleUpdateAnnouncement)
			r.Delete("/{id}", s.handleDeleteAnnouncement)
		})

		r.Put("/api/users/{id}/permissions", s.handleUpdatePermissions)
	})

	guard.Mount(r, guard.Routes, guard.SessionCheckerFunc(s.HasSession), s.cfg.LoginPath, s.page)
	return r
}

// page answers a browser route with the page name; the client renders it.
func (s *HTTPServer) page(route guard.Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"page": route.Name, "path": r.URL.Path})
	})
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		requestID, _ := r.Context().Value(requestIDKey{}).(string)
		s.log.Error("request failed",
			zap.String("request_id", requestID),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ok, checks := s.service.Ready(r.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ok": ok, "checks": checks})
}

type sessionView struct {
	Authenticated bool           `json:"authenticated"`
	Initialized   bool           `json:"initialized"`
	User          *auth.User     `json:"user"`
	Profile       *store.Profile `json:"profile"`
}

func viewOf(state session.State) sessionView {
	return sessionView{
		Authenticated: state.IsAuthenticated(),
		Initialized:   state.Initialized,
		User:          state.User(),
		Profile:       state.Profile,
	}
}

func (s *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	key := s.clientKey(r)
	if key == "" {
		writeJSON(w, http.StatusOK, sessionView{Initialized: true})
		return
	}
	st, err := s.sessions.Get(r.Context(), key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(st.Snapshot()))
}

func (s *HTTPServer) handleSetSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	if strings.TrimSpace(body.AccessToken) == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "access_token is required", nil)
		return
	}

	key := s.clientKey(r)
	if key == "" {
		key = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     s.cfg.SessionCookie,
			Value:    key,
			Path:     "/",
			MaxAge:   sessionCookieMaxAge,
			HttpOnly: true,
			Secure:   s.cfg.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	st, err := s.sessions.Get(r.Context(), key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	state, err := st.SetSession(r.Context(), body.AccessToken, body.RefreshToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(state))
}

func (s *HTTPServer) handleSignOut(w http.ResponseWriter, r *http.Request) {
	key := s.clientKey(r)
	if key != "" {
		st, err := s.sessions.Get(r.Context(), key)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if err := st.SignOut(r.Context()); err != nil {
			s.fail(w, r, err)
			return
		}
		s.sessions.Drop(key)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleHome(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Home(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := s.service.Search(r.Context(), q.Get("q"), q.Get("status"), queryInt(r, "limit", 0))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleMarkdown(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Markdown string `json:"markdown"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"html": s.service.RenderMarkdown(body.Markdown)})
}

func (s *HTTPServer) handleUsernameAvailable(w http.ResponseWriter, r *http.Request) {
	available, err := s.service.UsernameAvailable(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

func (s *HTTPServer) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListSubmissions(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Submission(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type draftBody struct {
	Title             string  `json:"title"`
	Abstract          string  `json:"abstract"`
	ContentMD         string  `json:"content_md"`
	Keywords          string  `json:"keywords"`
	AuthorName        *string `json:"author_name"`
	AuthorEmail       *string `json:"author_email"`
	AuthorAffiliation *string `json:"author_affiliation"`
}

func (b draftBody) draft() workflow.Draft {
	return workflow.Draft{
		Title:             b.Title,
		Abstract:          b.Abstract,
		ContentMD:         b.ContentMD,
		Keywords:          b.Keywords,
		AuthorName:        b.AuthorName,
		AuthorEmail:       b.AuthorEmail,
		AuthorAffiliation: b.AuthorAffiliation,
	}
}

func (s *HTTPServer) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var body draftBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	id, err := s.service.CreateSubmission(r.Context(), actorFrom(r.Context()), body.draft())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *HTTPServer) handleUpdateSubmission(w http.ResponseWriter, r *http.Request) {
	var body draftBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	update, err := s.service.UpdateSubmission(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), body.draft())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, update)
}

func (s *HTTPServer) handleDecision(w http.ResponseWriter, r *http.Request) {
	var body DecisionInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	m, err := s.service.Decide(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	commits, err := s.service.History(r.Context(), chi.URLParam(r, "id"), queryInt(r, "limit", 50))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": commits})
}

func (s *HTTPServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	content, err := s.service.Version(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "ref"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":         content.Title,
		"abstract":      content.Abstract,
		"keywords":      content.Keywords,
		"version_label": content.VersionLabel,
		"content_md":    content.ContentMD,
	})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.service.Export(r.Context(), export.Request{
		SubmissionID:   chi.URLParam(r, "id"),
		IncludeReviews: q.Get("include_reviews") == "true",
		Upload:         q.Get("upload") == "true",
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	if res.ObjectKey != "" {
		w.Header().Set("X-Object-Key", res.ObjectKey)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (s *HTTPServer) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.service.Comments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": comments})
}

type bodyMD struct {
	BodyMD string `json:"body_md"`
}

func (s *HTTPServer) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var body bodyMD
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	if err := s.service.AddComment(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), body.BodyMD); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReviewThread(w http.ResponseWriter, r *http.Request) {
	thread, err := s.service.ReviewThread(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (s *HTTPServer) handleCreateOpinion(w http.ResponseWriter, r *http.Request) {
	var body OpinionInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	if err := s.service.AddReviewOpinion(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), body); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReply(w http.ResponseWriter, r *http.Request) {
	var body bodyMD
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	role, err := s.service.Reply(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "opinionID"), body.BodyMD)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"role": role})
}

func (s *HTTPServer) handleCloseOpinion(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CloseOpinion(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "opinionID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleAuthorReply(w http.ResponseWriter, r *http.Request) {
	var body bodyMD
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	if err := s.service.AuthorReply(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "opinionID"), body.BodyMD); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleListSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := s.service.Slots(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": slots})
}

func (s *HTTPServer) slotAction(w http.ResponseWriter, r *http.Request, action func(context.Context, Actor, string) error) {
	if err := action(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "slotID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleClaimSlot(w http.ResponseWriter, r *http.Request) {
	s.slotAction(w, r, s.service.ClaimSlot)
}

func (s *HTTPServer) handleExpireSlot(w http.ResponseWriter, r *http.Request) {
	s.slotAction(w, r, s.service.ExpireSlot)
}

func (s *HTTPServer) handleCompleteSlot(w http.ResponseWriter, r *http.Request) {
	s.slotAction(w, r, s.service.CompleteSlot)
}

func (s *HTTPServer) handleMySubmissions(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.MySubmissions(r.Context(), actorFrom(r.Context()), pageParams(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *HTTPServer) handleMyReviewOpinions(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.MyReviewOpinions(r.Context(), actorFrom(r.Context()), pageParams(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *HTTPServer) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.Announcements(r.Context(), pageParams(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *HTTPServer) handleCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var body journal.AnnouncementInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	if err := s.service.CreateAnnouncement(r.Context(), actorFrom(r.Context()), body); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *HTTPServer) handleUpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var body journal.AnnouncementPatch
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	if err := s.service.UpdateAnnouncement(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), body); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleDeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteAnnouncement(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleUpdatePermissions(w http.ResponseWriter, r *http.Request) {
	var body store.PermissionsUpdate
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	body.ID = chi.URLParam(r, "id")
	if err := s.service.UpdatePermissions(r.Context(), actorFrom(r.Context()), body); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func pageParams(r *http.Request) journal.PageParams {
	q := r.URL.Query()
	return journal.PageParams{
		Page:      queryInt(r, "page", 1),
		PageSize:  queryInt(r, "page_size", journal.DefaultPageSize),
		OrderBy:   q.Get("order_by"),
		Ascending: q.Get("asc") == "true",
	}
}
