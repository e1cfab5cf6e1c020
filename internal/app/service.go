package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"journal/api/internal/export"
	"journal/api/internal/gitrepo"
	"journal/api/internal/journal"
	"journal/api/internal/markdown"
	"journal/api/internal/metrics"
	"journal/api/internal/notify"
	"journal/api/internal/rbac"
	"journal/api/internal/search"
	"journal/api/internal/store"
	"journal/api/internal/workflow"
)

// Journal is the part of the query façade the API serves.
type Journal interface {
	FetchStats(ctx context.Context) ([]store.StatIndex, error)
	FetchAnnouncements(ctx context.Context, limit int) ([]store.Announcement, error)
	FetchAnnouncementsPage(ctx context.Context, p journal.PageParams) (journal.Page[store.Announcement], error)
	CreateAnnouncement(ctx context.Context, in journal.AnnouncementInput) error
	UpdateAnnouncement(ctx context.Context, id string, patch journal.AnnouncementPatch) error
	DeleteAnnouncement(ctx context.Context, id string) error

	FetchRecentActivities(ctx context.Context, limit int) ([]store.SubmissionListItem, error)
	SearchSubmissions(ctx context.Context, text string, limit int) ([]store.SubmissionListItem, error)
	FetchSubmissionListWithMeta(ctx context.Context, status store.SubmissionStatus) ([]store.SubmissionListItemWithMeta, error)
	FetchSubmissionDetail(ctx context.Context, id string) (*store.SubmissionDetail, error)
	CreateSubmission(ctx context.Context, payload store.SubmissionCreate) (string, error)
	UpdateSubmissionContent(ctx context.Context, id string, payload store.SubmissionContentUpdate) error
	UpdateSubmissionDecision(ctx context.Context, id string, m workflow.DecisionMutation) error
	FetchUserSubmissionsPage(ctx context.Context, authorID string, p journal.PageParams) (journal.Page[store.UserSubmissionRow], error)

	FetchComments(ctx context.Context, submissionID string) ([]store.CommentRecord, error)
	CreateComment(ctx context.Context, payload store.CommentCreate) error
	FetchReviewOpinions(ctx context.Context, submissionID string) ([]store.ReviewOpinionRecord, error)
	FetchReviewOpinion(ctx context.Context, submissionID, opinionID string) (*store.ReviewOpinionRecord, error)
	CreateReviewOpinion(ctx context.Context, payload store.ReviewOpinionCreate) error
	UpdateReviewOpinionAuthorReply(ctx context.Context, id, body string) error
	CloseReviewOpinion(ctx context.Context, id string) error
	FetchReviewOpinionReplies(ctx context.Context, submissionID string) ([]store.ReviewOpinionReply, error)
	CreateReviewOpinionReply(ctx context.Context, payload store.ReviewOpinionReplyCreate) error
	FetchUserReviewOpinionsPage(ctx context.Context, reviewerID string, p journal.PageParams) (journal.Page[store.UserReviewOpinionRow], error)

	FetchReviewSlots(ctx context.Context, submissionID string) ([]store.ReviewSlot, error)
	FetchReviewSlot(ctx context.Context, slotID string) (*store.ReviewSlot, error)
	ClaimReviewSlot(ctx context.Context, slotID, reviewerID string) error
	MarkReviewSlotExpired(ctx context.Context, slotID string) error
	CompleteReviewSlot(ctx context.Context, slotID string) error

	UpdateUserPermissions(ctx context.Context, payload store.PermissionsUpdate) error
	CheckUsernameAvailable(ctx context.Context, username string) (bool, error)
}

type History interface {
	Record(submissionID string, content gitrepo.Content, author, message string) (gitrepo.CommitInfo, error)
	History(submissionID string, limit int) ([]gitrepo.CommitInfo, error)
	ContentAt(submissionID, ref string) (gitrepo.Content, error)
}

type Searcher interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexSubmission(rec search.SubmissionRecord)
}

type Exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type Notifier interface {
	NotifyDecision(n notify.DecisionNotice) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Actor is the caller a request runs as. The zero value is an anonymous visitor.
type Actor struct {
	UserID  string
	Email   string
	Profile *store.Profile
}

func (a Actor) Authenticated() bool {
	return a.UserID != ""
}

func (a Actor) grants() rbac.Grants {
	if a.Profile == nil {
		return rbac.Grants{}
	}
	role := ""
	if a.Profile.Role != nil {
		role = *a.Profile.Role
	}
	return rbac.Grants{
		Role:    rbac.Normalize(role),
		Submit:  a.Profile.CanSubmit,
		Review:  a.Profile.CanReview,
		Comment: a.Profile.CanComment,
	}
}

func (a Actor) can(action rbac.Action) bool {
	return a.Authenticated() && rbac.Can(a.grants(), action)
}

func (a Actor) displayName() string {
	if a.Profile != nil && a.Profile.Username != nil && *a.Profile.Username != "" {
		return *a.Profile.Username
	}
	if a.Email != "" {
		return a.Email
	}
	return a.UserID
}

type Service struct {
	journal    Journal
	history    History
	search     Searcher
	exporter   Exporter
	notifier   Notifier
	db         Pinger
	metrics    metrics.Recorder
	log        *zap.Logger
	now        func() time.Time
	editPolicy workflow.EditPolicy
	markdown   *markdown.Renderer
}

type Option func(*Service)

func WithHistory(h History) Option {
	return func(s *Service) { s.history = h }
}

func WithSearch(sr Searcher) Option {
	return func(s *Service) { s.search = sr }
}

func WithExporter(e Exporter) Option {
	return func(s *Service) { s.exporter = e }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithPinger(p Pinger) Option {
	return func(s *Service) { s.db = p }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithEditPolicy(p workflow.EditPolicy) Option {
	return func(s *Service) { s.editPolicy = p }
}

func NewService(j Journal, opts ...Option) *Service {
	s := &Service{
		journal:    j,
		metrics:    metrics.Nop{},
		log:        zap.NewNop(),
		now:        time.Now,
		editPolicy: workflow.EditAllowAll,
		markdown:   markdown.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.search == nil {
		s.search = search.NewService(nil, j, s.metrics, s.log)
	}
	return s
}

func (s *Service) Ready(ctx context.Context) (bool, map[string]string) {
	checks := map[string]string{"database": "ok"}
	if s.db == nil {
		checks["database"] = "not configured"
		return false, checks
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		return false, checks
	}
	return true, checks
}

const homeRecentLimit = 6

type HomeView struct {
	Stats         []store.StatIndex          `json:"stats"`
	Announcements []store.Announcement       `json:"announcements"`
	Recent        []store.SubmissionListItem `json:"recent"`
}

// Home loads the three home page panels concurrently.
func (s *Service) Home(ctx context.Context) (HomeView, error) {
	var view HomeView
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.journal.FetchStats(gctx)
		view.Stats = stats
		return err
	})
	g.Go(func() error {
		items, err := s.journal.FetchAnnouncements(gctx, journal.DefaultAnnouncements)
		view.Announcements = items
		return err
	})
	g.Go(func() error {
		items, err := s.journal.FetchRecentActivities(gctx, homeRecentLimit)
		view.Recent = items
		return err
	})
	if err := g.Wait(); err != nil {
		return HomeView{}, err
	}
	return view, nil
}

func parseStatus(raw string) (store.SubmissionStatus, error) {
	switch status := store.SubmissionStatus(strings.TrimSpace(raw)); status {
	case "":
		return store.StatusAccepted, nil
	case store.StatusSubmitted, store.StatusInReview, store.StatusAccepted, store.StatusRejected:
		return status, nil
	default:
		return "", domainError(http.StatusBadRequest, "INVALID_STATUS", "Unknown status "+raw, nil)
	}
}

func (s *Service) ListSubmissions(ctx context.Context, rawStatus string) ([]store.SubmissionListItemWithMeta, error) {
	status, err := parseStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	return s.journal.FetchSubmissionListWithMeta(ctx, status)
}

type SubmissionView struct {
	store.SubmissionDetail
	ContentHTML string `json:"content_html"`
}

func (s *Service) detail(ctx context.Context, id string) (*store.SubmissionDetail, error) {
	d, err := s.journal.FetchSubmissionDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, notFound("Submission")
	}
	return d, nil
}

func isAuthor(a Actor, d *store.SubmissionDetail) bool {
	return a.Authenticated() && d.AuthorID != nil && *d.AuthorID == a.UserID
}

// Submission returns the detail page data. The contact email is only shown to
// the author and to editors.
func (s *Service) Submission(ctx context.Context, actor Actor, id string) (SubmissionView, error) {
	d, err := s.detail(ctx, id)
	if err != nil {
		return SubmissionView{}, err
	}
	view := SubmissionView{SubmissionDetail: *d}
	if !isAuthor(actor, d) && !actor.can(rbac.ActionDecide) {
		view.AuthorEmail = nil
	}
	if d.ContentMD != nil {
		view.ContentHTML = s.markdown.Render(*d.ContentMD)
	}
	return view, nil
}

func (s *Service) CreateSubmission(ctx context.Context, actor Actor, draft workflow.Draft) (string, error) {
	payload, err := workflow.PrepareSubmission(actor.UserID, actor.Profile, draft)
	if err != nil {
		return "", err
	}
	id, err := s.journal.CreateSubmission(ctx, payload)
	if err != nil {
		return "", err
	}
	s.afterContentChange(ctx, actor, id, "Initial submission")
	return id, nil
}

func (s *Service) UpdateSubmission(ctx context.Context, actor Actor, id string, draft workflow.Draft) (store.SubmissionContentUpdate, error) {
	current, err := s.detail(ctx, id)
	if err != nil {
		return store.SubmissionContentUpdate{}, err
	}
	update, err := workflow.PrepareContentUpdate(*current, actor.UserID, s.editPolicy, draft, s.now())
	if err != nil {
		return store.SubmissionContentUpdate{}, err
	}
	if err := s.journal.UpdateSubmissionContent(ctx, id, update); err != nil {
		return store.SubmissionContentUpdate{}, err
	}
	s.afterContentChange(ctx, actor, id, "Revision "+update.VersionLabel)
	return update, nil
}

// afterContentChange commits the stored version to history and refreshes the
// search index. Both are best effort: the row store already holds the change.
func (s *Service) afterContentChange(ctx context.Context, actor Actor, id, message string) {
	d, err := s.journal.FetchSubmissionDetail(ctx, id)
	if err != nil || d == nil {
		s.log.Warn("reload submission after write", zap.String("submission_id", id), zap.Error(err))
		return
	}
	if s.history != nil {
		content := gitrepo.Content{
			Title:        d.Title,
			Keywords:     d.Keywords,
			ContentMD:    deref(d.ContentMD),
			Abstract:     deref(d.Abstract),
			VersionLabel: deref(d.VersionLabel),
		}
		if _, err := s.history.Record(id, content, actor.displayName(), message); err != nil {
			s.log.Error("record submission history", zap.String("submission_id", id), zap.Error(err))
		}
	}
	s.search.IndexSubmission(search.RecordFromDetail(*d))
}

type DecisionInput struct {
	Status   store.SubmissionStatus `json:"status"`
	Decision *store.Decision        `json:"decision"`
}

func (s *Service) Decide(ctx context.Context, actor Actor, id string, in DecisionInput) (workflow.DecisionMutation, error) {
	if !actor.Authenticated() {
		return workflow.DecisionMutation{}, workflow.ErrSignInRequired
	}
	if !actor.can(rbac.ActionDecide) {
		return workflow.DecisionMutation{}, forbidden(string(rbac.ActionDecide))
	}
	d, err := s.detail(ctx, id)
	if err != nil {
		return workflow.DecisionMutation{}, err
	}
	m, err := workflow.ApplyDecision(in.Status, in.Decision, s.now())
	if err != nil {
		return workflow.DecisionMutation{}, err
	}
	if err := s.journal.UpdateSubmissionDecision(ctx, id, m); err != nil {
		return workflow.DecisionMutation{}, err
	}
	s.log.Info("decision recorded",
		zap.String("submission_id", id),
		zap.String("status", string(m.Status)),
		zap.String("editor_id", actor.UserID),
	)

	d.Status = m.Status
	d.Decision = m.Decision
	d.UpdatedAt = m.UpdatedAt
	s.search.IndexSubmission(search.RecordFromDetail(*d))

	if s.notifier != nil && d.AuthorEmail != nil && *d.AuthorEmail != "" {
		notice := notify.DecisionNotice{
			To:           *d.AuthorEmail,
			AuthorName:   authorName(d),
			SubmissionID: id,
			Title:        d.Title,
			Status:       m.Status,
			Decision:     m.Decision,
			VersionLabel: deref(d.VersionLabel),
		}
		if err := s.notifier.NotifyDecision(notice); err != nil {
			s.log.Warn("decision mail failed", zap.String("submission_id", id), zap.Error(err))
		}
	}
	return m, nil
}

func (s *Service) History(ctx context.Context, id string, limit int) ([]gitrepo.CommitInfo, error) {
	if _, err := s.detail(ctx, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []gitrepo.CommitInfo{}, nil
	}
	commits, err := s.history.History(id, limit)
	if errors.Is(err, gitrepo.ErrNoHistory) {
		return []gitrepo.CommitInfo{}, nil
	}
	return commits, err
}

func (s *Service) Version(ctx context.Context, id, ref string) (gitrepo.Content, error) {
	if s.history == nil {
		return gitrepo.Content{}, gitrepo.ErrNoHistory
	}
	content, err := s.history.ContentAt(id, ref)
	if err != nil && !errors.Is(err, gitrepo.ErrNoHistory) {
		return gitrepo.Content{}, notFound("Version " + ref)
	}
	return content, err
}

func (s *Service) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	if s.exporter == nil {
		return nil, export.ErrPDFDependencyMissing
	}
	return s.exporter.Export(ctx, req)
}

func (s *Service) Comments(ctx context.Context, submissionID string) ([]store.CommentRecord, error) {
	return s.journal.FetchComments(ctx, submissionID)
}

func (s *Service) AddComment(ctx context.Context, actor Actor, submissionID, body string) error {
	if !actor.Authenticated() {
		return workflow.ErrSignInRequired
	}
	if !actor.can(rbac.ActionComment) {
		return forbidden(string(rbac.ActionComment))
	}
	if strings.TrimSpace(body) == "" {
		return invalid("Comment is empty")
	}
	if _, err := s.detail(ctx, submissionID); err != nil {
		return err
	}
	return s.journal.CreateComment(ctx, store.CommentCreate{
		SubmissionID: submissionID,
		AuthorID:     actor.UserID,
		BodyMD:       body,
	})
}

type ReviewThread struct {
	Opinions []store.ReviewOpinionRecord `json:"opinions"`
	Replies  []store.ReviewOpinionReply  `json:"replies"`
}

func (s *Service) ReviewThread(ctx context.Context, submissionID string) (ReviewThread, error) {
	var thread ReviewThread
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		opinions, err := s.journal.FetchReviewOpinions(gctx, submissionID)
		thread.Opinions = opinions
		return err
	})
	g.Go(func() error {
		replies, err := s.journal.FetchReviewOpinionReplies(gctx, submissionID)
		thread.Replies = replies
		return err
	})
	if err := g.Wait(); err != nil {
		return ReviewThread{}, err
	}
	return thread, nil
}

type OpinionInput struct {
	BodyMD   string         `json:"body_md"`
	Decision store.Decision `json:"decision"`
}

func (s *Service) AddReviewOpinion(ctx context.Context, actor Actor, submissionID string, in OpinionInput) error {
	if !actor.Authenticated() {
		return workflow.ErrSignInRequired
	}
	if !actor.can(rbac.ActionReview) {
		return forbidden(string(rbac.ActionReview))
	}
	if strings.TrimSpace(in.BodyMD) == "" {
		return invalid("Review opinion is empty")
	}
	if !in.Decision.Valid() {
		return invalid("Unknown decision " + string(in.Decision))
	}
	if _, err := s.detail(ctx, submissionID); err != nil {
		return err
	}
	return s.journal.CreateReviewOpinion(ctx, store.ReviewOpinionCreate{
		SubmissionID: submissionID,
		ReviewerID:   actor.UserID,
		BodyMD:       in.BodyMD,
		Decision:     in.Decision,
	})
}

func (s *Service) opinion(ctx context.Context, submissionID, opinionID string) (*store.ReviewOpinionRecord, error) {
	op, err := s.journal.FetchReviewOpinion(ctx, submissionID, opinionID)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, notFound("Review opinion")
	}
	return op, nil
}

// Reply posts to a review opinion thread as the submission author or as the
// opinion's reviewer, decided from the current session on every call.
func (s *Service) Reply(ctx context.Context, actor Actor, submissionID, opinionID, body string) (store.ReplyRole, error) {
	if !actor.Authenticated() {
		return "", workflow.ErrSignInRequired
	}
	if strings.TrimSpace(body) == "" {
		return "", invalid("Reply is empty")
	}
	d, err := s.detail(ctx, submissionID)
	if err != nil {
		return "", err
	}
	op, err := s.opinion(ctx, submissionID, opinionID)
	if err != nil {
		return "", err
	}
	role, ok := workflow.ReplyPermission(actor.UserID, deref(d.AuthorID), deref(op.ReviewerID))
	if !ok {
		return "", workflow.ErrReplyNotPermitted
	}
	err = s.journal.CreateReviewOpinionReply(ctx, store.ReviewOpinionReplyCreate{
		SubmissionID:    submissionID,
		ReviewOpinionID: opinionID,
		AuthorID:        actor.UserID,
		Role:            role,
		BodyMD:          body,
	})
	return role, err
}

func (s *Service) AuthorReply(ctx context.Context, actor Actor, submissionID, opinionID, body string) error {
	if !actor.Authenticated() {
		return workflow.ErrSignInRequired
	}
	d, err := s.detail(ctx, submissionID)
	if err != nil {
		return err
	}
	if !isAuthor(actor, d) {
		return workflow.ErrNotAuthor
	}
	if _, err := s.opinion(ctx, submissionID, opinionID); err != nil {
		return err
	}
	return s.journal.UpdateReviewOpinionAuthorReply(ctx, opinionID, body)
}

// CloseOpinion is allowed to the opinion's reviewer and to editors.
func (s *Service) CloseOpinion(ctx context.Context, actor Actor, submissionID, opinionID string) error {
	if !actor.Authenticated() {
		return workflow.ErrSignInRequired
	}
	op, err := s.opinion(ctx, submissionID, opinionID)
	if err != nil {
		return err
	}
	if deref(op.ReviewerID) != actor.UserID && !actor.can(rbac.ActionDecide) {
		return forbidden("close_opinion")
	}
	return s.journal.CloseReviewOpinion(ctx, opinionID)
}

func (s *Service) Slots(ctx context.Context, submissionID string) ([]store.ReviewSlot, error) {
	return s.journal.FetchReviewSlots(ctx, submissionID)
}

func (s *Service) ClaimSlot(ctx context.Context, actor Actor, slotID string) error {
	if !actor.Authenticated() {
		return workflow.ErrSignInRequired
	}
	if !actor.can(rbac.ActionReview) {
		return forbidden(string(rbac.ActionReview))
	}
	return s.journal.ClaimReviewSlot(ctx, slotID, actor.UserID)
}

func (s *Service) ExpireSlot(ctx context.Context, actor Actor, slotID string) error {
	if !actor.Authenticated() {
		return workflow.ErrSignInRequired
	}
	if !actor.can(rbac.ActionDecide) {
		return forbidden("expire_slot")
	}
	return s.journal.MarkReviewSlotExpired(ctx, slotID)
}

// CompleteSlot is allowed to the slot's reviewer and to editors.
func (s *Service) CompleteSlot(ctx context.Context, actor Actor, slotID string) error {
	if !actor.Authenticated() {
		return workflow.ErrSignInRequired
	}
	slot, err := s.journal.FetchReviewSlot(ctx, slotID)
	if err != nil {
		return err
	}
	if slot == nil {
		return notFound("Review slot")
	}
	if deref(slot.ReviewerID) != actor.UserID && !actor.can(rbac.ActionDecide) {
		return forbidden("complete_slot")
	}
	return s.journal.CompleteReviewSlot(ctx, slotID)
}

func (s *Service) Search(ctx context.Context, text, rawStatus string, limit int) (search.Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return search.Response{Results: []search.Result{}, Engine: search.EngineFallback}, nil
	}
	var status store.SubmissionStatus
	if rawStatus != "" {
		parsed, err := parseStatus(rawStatus)
		if err != nil {
			return search.Response{}, err
		}
		status = parsed
	}
	return s.search.Search(ctx, search.Query{Text: text, Status: status, Limit: limit}), nil
}

func (s *Service) MySubmissions(ctx context.Context, actor Actor, p journal.PageParams) (journal.Page[store.UserSubmissionRow], error) {
	if !actor.Authenticated() {
		return journal.Page[store.UserSubmissionRow]{}, workflow.ErrSignInRequired
	}
	return s.journal.FetchUserSubmissionsPage(ctx, actor.UserID, p)
}

func (s *Service) MyReviewOpinions(ctx context.Context, actor Actor, p journal.PageParams) (journal.Page[store.UserReviewOpinionRow], error) {
	if !actor.Authenticated() {
		return journal.Page[store.UserReviewOpinionRow]{}, workflow.ErrSignInRequired
	}
	return s.journal.FetchUserReviewOpinionsPage(ctx, actor.UserID, p)
}

func (s *Service) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	return s.journal.CheckUsernameAvailable(ctx, username)
}

func (s *Service) Announcements(ctx context.Context, p journal.PageParams) (journal.Page[store.Announcement], error) {
	return s.journal.FetchAnnouncementsPage(ctx, p)
}

func (s *Service) requireAnnouncer(actor Actor) error {
	if !actor.Authenticated() {
		return workflow.ErrSignInRequired
	}
	if !actor.can(rbac.ActionAnnounce) {
		return forbidden(string(rbac.ActionAnnounce))
	}
	return nil
}

func (s *Service) CreateAnnouncement(ctx context.Context, actor Actor, in journal.AnnouncementInput) error {
	if err := s.requireAnnouncer(actor); err != nil {
		return err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return invalid("Announcement title is empty")
	}
	in.AuthorID = &actor.UserID
	return s.journal.CreateAnnouncement(ctx, in)
}

func (s *Service) UpdateAnnouncement(ctx context.Context, actor Actor, id string, patch journal.AnnouncementPatch) error {
	if err := s.requireAnnouncer(actor); err != nil {
		return err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return invalid("Announcement title is empty")
	}
	return s.journal.UpdateAnnouncement(ctx, id, patch)
}

func (s *Service) DeleteAnnouncement(ctx context.Context, actor Actor, id string) error {
	if err := s.requireAnnouncer(actor); err != nil {
		return err
	}
	return s.journal.DeleteAnnouncement(ctx, id)
}

func (s *Service) UpdatePermissions(ctx context.Context, actor Actor, in store.PermissionsUpdate) error {
	if !actor.Authenticated() {
		return workflow.ErrSignInRequired
	}
	if !actor.can(rbac.ActionAdmin) {
		return forbidden(string(rbac.ActionAdmin))
	}
	if in.Role != nil && !rbac.Role(*in.Role).Valid() {
		return invalid("Unknown role " + *in.Role)
	}
	if err := s.journal.UpdateUserPermissions(ctx, in); err != nil {
		return err
	}
	s.log.Info("permissions updated", zap.String("user_id", in.ID), zap.String("admin_id", actor.UserID))
	return nil
}

func (s *Service) RenderMarkdown(src string) string {
	return s.markdown.Render(src)
}

func authorName(d *store.SubmissionDetail) string {
	if d.Author != nil {
		return deref(d.Author.Username)
	}
	return ""
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
