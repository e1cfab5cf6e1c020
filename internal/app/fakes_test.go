package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"journal/api/internal/auth"
	"journal/api/internal/gitrepo"
	"journal/api/internal/journal"
	"journal/api/internal/notify"
	"journal/api/internal/session"
	"journal/api/internal/store"
	"journal/api/internal/workflow"
)

var testNow = time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

// fakeJournal keeps submissions, opinions and slots in maps and records writes.
type fakeJournal struct {
	mu sync.Mutex

	submissions map[string]*store.SubmissionDetail
	opinions    map[string]*store.ReviewOpinionRecord
	slots       map[string]*store.ReviewSlot
	announced   []store.Announcement
	stats       []store.StatIndex
	recent      []store.SubmissionListItem
	statsErr    error
	claimErr    error
	taken       map[string]bool

	created       []store.SubmissionCreate
	contentWrites map[string]store.SubmissionContentUpdate
	decisions     map[string]workflow.DecisionMutation
	comments      []store.CommentCreate
	newOpinions   []store.ReviewOpinionCreate
	replies       []store.ReviewOpinionReplyCreate
	authorReplies map[string]string
	closed        []string
	claims        []string
	expired       []string
	completed     []string
	permissions   []store.PermissionsUpdate
	announcements []journal.AnnouncementInput
	deleted       []string
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{
		submissions:   map[string]*store.SubmissionDetail{},
		opinions:      map[string]*store.ReviewOpinionRecord{},
		slots:         map[string]*store.ReviewSlot{},
		taken:         map[string]bool{},
		contentWrites: map[string]store.SubmissionContentUpdate{},
		decisions:     map[string]workflow.DecisionMutation{},
		authorReplies: map[string]string{},
	}
}

func (f *fakeJournal) addSubmission(d store.SubmissionDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions[d.ID] = &d
}

func (f *fakeJournal) FetchStats(context.Context) ([]store.StatIndex, error) {
	return f.stats, f.statsErr
}

func (f *fakeJournal) FetchAnnouncements(context.Context, int) ([]store.Announcement, error) {
	return f.announced, nil
}

func (f *fakeJournal) FetchAnnouncementsPage(context.Context, journal.PageParams) (journal.Page[store.Announcement], error) {
	return journal.Page[store.Announcement]{Items: f.announced, Count: len(f.announced)}, nil
}

func (f *fakeJournal) CreateAnnouncement(_ context.Context, in journal.AnnouncementInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announcements = append(f.announcements, in)
	return nil
}

func (f *fakeJournal) UpdateAnnouncement(context.Context, string, journal.AnnouncementPatch) error {
	return nil
}

func (f *fakeJournal) DeleteAnnouncement(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeJournal) FetchRecentActivities(context.Context, int) ([]store.SubmissionListItem, error) {
	return f.recent, nil
}

func (f *fakeJournal) SearchSubmissions(_ context.Context, text string, _ int) ([]store.SubmissionListItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.SubmissionListItem
	for _, d := range f.submissions {
		if strings.Contains(strings.ToLower(d.Title), strings.ToLower(text)) {
			out = append(out, store.SubmissionListItem{ID: d.ID, Title: d.Title, Status: d.Status, UpdatedAt: d.UpdatedAt})
		}
	}
	return out, nil
}

func (f *fakeJournal) FetchSubmissionListWithMeta(_ context.Context, status store.SubmissionStatus) ([]store.SubmissionListItemWithMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.SubmissionListItemWithMeta{}
	for _, d := range f.submissions {
		if d.Status == status {
			out = append(out, store.SubmissionListItemWithMeta{
				SubmissionListItem: store.SubmissionListItem{ID: d.ID, Title: d.Title, Status: d.Status},
			})
		}
	}
	return out, nil
}

func (f *fakeJournal) FetchSubmissionDetail(_ context.Context, id string) (*store.SubmissionDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.submissions[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (f *fakeJournal) CreateSubmission(_ context.Context, payload store.SubmissionCreate) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, payload)
	id := "sub-new"
	v := workflow.InitialVersion(testNow)
	f.submissions[id] = &store.SubmissionDetail{
		ID:           id,
		Title:        payload.Title,
		Abstract:     strPtr(payload.Abstract),
		ContentMD:    strPtr(payload.ContentMD),
		Status:       store.StatusInReview,
		AuthorID:     strPtr(payload.AuthorID),
		Keywords:     payload.Keywords,
		VersionMajor: &v.Major,
		VersionMinor: &v.Minor,
		VersionLabel: strPtr(v.Label),
	}
	return id, nil
}

func (f *fakeJournal) UpdateSubmissionContent(_ context.Context, id string, payload store.SubmissionContentUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentWrites[id] = payload
	if d, ok := f.submissions[id]; ok {
		d.Title = payload.Title
		d.ContentMD = strPtr(payload.ContentMD)
		d.VersionMajor = &payload.VersionMajor
		d.VersionMinor = &payload.VersionMinor
		d.VersionLabel = strPtr(payload.VersionLabel)
	}
	return nil
}

func (f *fakeJournal) UpdateSubmissionDecision(_ context.Context, id string, m workflow.DecisionMutation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions[id] = m
	return nil
}

func (f *fakeJournal) FetchUserSubmissionsPage(_ context.Context, authorID string, _ journal.PageParams) (journal.Page[store.UserSubmissionRow], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []store.UserSubmissionRow
	for _, d := range f.submissions {
		if d.AuthorID != nil && *d.AuthorID == authorID {
			rows = append(rows, store.UserSubmissionRow{ID: d.ID, Title: d.Title, Status: d.Status})
		}
	}
	return journal.Page[store.UserSubmissionRow]{Items: rows, Count: len(rows)}, nil
}

func (f *fakeJournal) FetchComments(context.Context, string) ([]store.CommentRecord, error) {
	return []store.CommentRecord{}, nil
}

func (f *fakeJournal) CreateComment(_ context.Context, payload store.CommentCreate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, payload)
	return nil
}

func (f *fakeJournal) FetchReviewOpinions(context.Context, string) ([]store.ReviewOpinionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.ReviewOpinionRecord{}
	for _, op := range f.opinions {
		out = append(out, *op)
	}
	return out, nil
}

func (f *fakeJournal) FetchReviewOpinion(_ context.Context, _, opinionID string) (*store.ReviewOpinionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	op, ok := f.opinions[opinionID]
	if !ok {
		return nil, nil
	}
	cp := *op
	return &cp, nil
}

func (f *fakeJournal) CreateReviewOpinion(_ context.Context, payload store.ReviewOpinionCreate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newOpinions = append(f.newOpinions, payload)
	return nil
}

func (f *fakeJournal) UpdateReviewOpinionAuthorReply(_ context.Context, id, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authorReplies[id] = body
	return nil
}

func (f *fakeJournal) CloseReviewOpinion(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
	return nil
}

func (f *fakeJournal) FetchReviewOpinionReplies(context.Context, string) ([]store.ReviewOpinionReply, error) {
	return []store.ReviewOpinionReply{}, nil
}

func (f *fakeJournal) CreateReviewOpinionReply(_ context.Context, payload store.ReviewOpinionReplyCreate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, payload)
	return nil
}

func (f *fakeJournal) FetchUserReviewOpinionsPage(context.Context, string, journal.PageParams) (journal.Page[store.UserReviewOpinionRow], error) {
	return journal.Page[store.UserReviewOpinionRow]{}, nil
}

func (f *fakeJournal) FetchReviewSlots(context.Context, string) ([]store.ReviewSlot, error) {
	return []store.ReviewSlot{}, nil
}

func (f *fakeJournal) FetchReviewSlot(_ context.Context, slotID string) (*store.ReviewSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[slotID]
	if !ok {
		return nil, nil
	}
	cp := *slot
	return &cp, nil
}

func (f *fakeJournal) ClaimReviewSlot(_ context.Context, slotID, reviewerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return f.claimErr
	}
	f.claims = append(f.claims, slotID+":"+reviewerID)
	return nil
}

func (f *fakeJournal) MarkReviewSlotExpired(_ context.Context, slotID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, slotID)
	return nil
}

func (f *fakeJournal) CompleteReviewSlot(_ context.Context, slotID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, slotID)
	return nil
}

func (f *fakeJournal) UpdateUserPermissions(_ context.Context, payload store.PermissionsUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permissions = append(f.permissions, payload)
	return nil
}

func (f *fakeJournal) CheckUsernameAvailable(_ context.Context, username string) (bool, error) {
	if strings.TrimSpace(username) == "" {
		return false, journal.ErrUsernameRequired
	}
	return !f.taken[strings.ToLower(username)], nil
}

type fakeHistory struct {
	mu       sync.Mutex
	recorded []gitrepo.Content
	messages []string
	commits  []gitrepo.CommitInfo
	err      error
}

func (f *fakeHistory) Record(_ string, content gitrepo.Content, _ string, message string) (gitrepo.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, content)
	f.messages = append(f.messages, message)
	return gitrepo.CommitInfo{VersionLabel: content.VersionLabel, Message: message}, nil
}

func (f *fakeHistory) History(string, int) ([]gitrepo.CommitInfo, error) {
	return f.commits, f.err
}

func (f *fakeHistory) ContentAt(string, string) (gitrepo.Content, error) {
	return gitrepo.Content{}, f.err
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notify.DecisionNotice
}

func (f *fakeNotifier) NotifyDecision(n notify.DecisionNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
	return nil
}

// profileBook serves the profiles sessions derive on sign-in.
type profileBook struct {
	mu       sync.Mutex
	profiles map[string]store.Profile
}

func (b *profileBook) EnsureProfile(_ context.Context, id journal.Identity) (*store.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[id.ID]
	if !ok {
		p = store.Profile{ID: id.ID}
	}
	return &p, nil
}

var testSecret = []byte("app-test-secret")

type harness struct {
	t        *testing.T
	journal  *fakeJournal
	history  *fakeHistory
	notifier *fakeNotifier
	profiles *profileBook
	server   *HTTPServer
	handler  http.Handler

	authSkew atomic.Int64
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := auth.NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		t:        t,
		journal:  newFakeJournal(),
		history:  &fakeHistory{},
		notifier: &fakeNotifier{},
		profiles: &profileBook{profiles: map[string]store.Profile{}},
	}
	registry := session.NewRegistry(func(key string) *session.Store {
		client := auth.NewClient(testSecret, auth.NewRedisPersistence(rdb, key), auth.WithClientClock(h.authNow))
		return session.New(client, h.profiles, nil)
	})
	t.Cleanup(registry.Close)

	base := []Option{
		WithHistory(h.history),
		WithNotifier(h.notifier),
		WithClock(func() time.Time { return testNow }),
	}
	svc := NewService(h.journal, append(base, opts...)...)
	h.server = NewHTTPServer(svc, registry, HTTPConfig{CORSOrigin: "*", RateBurst: 1000})
	t.Cleanup(h.server.Close)
	h.handler = h.server.Handler()
	return h
}

func (h *harness) authNow() time.Time {
	return time.Now().Add(time.Duration(h.authSkew.Load()))
}

// advanceAuthClock moves the clock tokens are checked against.
func (h *harness) advanceAuthClock(d time.Duration) {
	h.authSkew.Add(int64(d))
}

// signIn registers profile and posts a session for it, returning the cookie.
func (h *harness) signIn(profile store.Profile) *http.Cookie {
	h.t.Helper()
	h.profiles.mu.Lock()
	h.profiles.profiles[profile.ID] = profile
	h.profiles.mu.Unlock()

	token, err := auth.IssueToken(testSecret, auth.Claims{
		Email: profile.ID + "@example.org",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(h.t, err)

	rr := h.do(http.MethodPost, "/api/session", `{"access_token":"`+token+`","refresh_token":"r"}`, nil)
	require.Equal(h.t, http.StatusOK, rr.Code, rr.Body.String())
	for _, c := range rr.Result().Cookies() {
		if c.Name == "journal_client" {
			return c
		}
	}
	h.t.Fatal("no session cookie issued")
	return nil
}

func (h *harness) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func roleProfile(id, role string) store.Profile {
	return store.Profile{ID: id, Role: strPtr(role), CanSubmit: true, CanReview: true, CanComment: true}
}
