package journal

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journal/api/internal/store"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestCheckUsernameAvailable(t *testing.T) {
	t.Run("blank", func(t *testing.T) {
		db := &fakeBackend{}
		ok, err := newTestClient(db).CheckUsernameAvailable(context.Background(), "   ")
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrUsernameRequired)
		assert.Empty(t, db.queries)
	})

	t.Run("taken ignoring case", func(t *testing.T) {
		db := &fakeBackend{selectFn: func(_ context.Context, q *store.Query) (store.Result, error) {
			assert.True(t, q.IsHead())
			assert.Contains(t, q.String(), "username=ilike.Ada")
			return store.CountResult(1), nil
		}}
		ok, err := newTestClient(db).CheckUsernameAvailable(context.Background(), "  Ada ")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("free", func(t *testing.T) {
		db := &fakeBackend{selectFn: func(context.Context, *store.Query) (store.Result, error) {
			return store.CountResult(0), nil
		}}
		ok, err := newTestClient(db).CheckUsernameAvailable(context.Background(), "grace")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestDeriveUsername(t *testing.T) {
	cases := []struct {
		name string
		id   Identity
		want string
	}{
		{"user_name first", Identity{Email: "a@x.io", Metadata: map[string]any{"user_name": "ada", "full_name": "Ada L"}}, "ada"},
		{"full_name next", Identity{Email: "a@x.io", Metadata: map[string]any{"full_name": "Ada L"}}, "Ada L"},
		{"email local part", Identity{Email: "ada.l@x.io"}, "ada.l"},
		{"blank metadata skipped", Identity{Email: "g@x.io", Metadata: map[string]any{"user_name": " "}}, "g"},
		{"nothing", Identity{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveUsername(tc.id))
		})
	}
}

func TestEnsureProfileKeepsExistingUsername(t *testing.T) {
	db := &fakeBackend{selectFn: func(_ context.Context, q *store.Query) (store.Result, error) {
		if q.String() == "users?select=username&id=eq.u1" {
			return store.Result{Rows: json.RawMessage(`{"username":"chosen"}`)}, nil
		}
		return store.Result{Rows: json.RawMessage(`{"id":"u1","username":"chosen","role":"reviewer","can_submit":true,"can_review":true,"can_comment":true}`)}, nil
	}}

	profile, err := newTestClient(db).EnsureProfile(context.Background(), Identity{
		ID: "u1", Email: "ada@x.io", Metadata: map[string]any{"user_name": "ada", "avatar_url": "https://img/a.png"},
	})
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.True(t, profile.CanReview)

	require.Len(t, db.mutations, 1)
	m := db.mutations[0]
	assert.Equal(t, "upsert", m.Kind())
	assert.JSONEq(t, `{"id":"u1","username":"chosen","avatar_url":"https://img/a.png"}`, mustJSON(t, m.Values(0)))
}

func TestEnsureProfileDerivesForNewUser(t *testing.T) {
	db := &fakeBackend{selectFn: func(_ context.Context, q *store.Query) (store.Result, error) {
		if q.String() == "users?select=username&id=eq.u2" {
			return store.Result{Rows: json.RawMessage(`null`)}, nil
		}
		return store.Result{Rows: json.RawMessage(`{"id":"u2","username":"grace","can_submit":true}`)}, nil
	}}

	_, err := newTestClient(db).EnsureProfile(context.Background(), Identity{ID: "u2", Email: "grace@x.io"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u2","username":"grace"}`, mustJSON(t, db.mutations[0].Values(0)))
}

func TestUpdateUserPermissionsSendsOnlySetFields(t *testing.T) {
	db := &fakeBackend{}
	canReview := true
	require.NoError(t, newTestClient(db).UpdateUserPermissions(context.Background(), store.PermissionsUpdate{ID: "u1", CanReview: &canReview}))
	assert.JSONEq(t, `{"id":"u1","can_review":true}`, mustJSON(t, db.mutations[0].Values(0)))
	assert.Equal(t, "id=eq.u1", db.mutations[0].Filters())
}

func TestAnnouncements(t *testing.T) {
	db := &fakeBackend{}
	c := newTestClient(db)
	ctx := context.Background()

	_, err := c.FetchAnnouncements(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, db.queriesMatching("announcements?select=id,title,body_md,created_at,updated_at,author_id&order=created_at.desc&limit=5"), 1)

	_, err = c.FetchAnnouncementsPage(ctx, PageParams{Page: 2, PageSize: 5, OrderBy: "title", Ascending: true})
	require.NoError(t, err)
	assert.Len(t, db.queriesMatching("order=title.asc&offset=5&limit=5"), 1)

	title := "Renamed"
	require.NoError(t, c.UpdateAnnouncement(ctx, "a1", AnnouncementPatch{Title: &title}))
	assert.JSONEq(t, `{"title":"Renamed","updated_at":"2026-02-09T10:30:00Z"}`, mustJSON(t, db.mutations[0].Values(0)))

	require.NoError(t, c.DeleteAnnouncement(ctx, "a1"))
	assert.Equal(t, "delete", db.mutations[1].Kind())

	body := "Welcome"
	require.NoError(t, c.CreateAnnouncement(ctx, AnnouncementInput{Title: "Hello", BodyMD: &body}))
	assert.JSONEq(t, `{"title":"Hello","body_md":"Welcome"}`, mustJSON(t, db.mutations[2].Values(0)))
}
