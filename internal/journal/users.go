package journal

import (
	"context"
	"strings"

	"journal/api/internal/store"
)

var profileColumns = []string{"id", "username", "role", "can_submit", "can_review", "can_comment"}

// ErrUsernameRequired is returned for a blank username check.
var ErrUsernameRequired = &store.QueryError{Message: "please enter a username", Code: store.CodeInvalidParameter}

func (c *Client) UpdateUserPermissions(ctx context.Context, payload store.PermissionsUpdate) error {
	_, err := c.mutate(ctx, store.Update(store.TableUsers, payload).Eq("id", payload.ID))
	return err
}

// CheckUsernameAvailable compares case-insensitively against existing names.
func (c *Client) CheckUsernameAvailable(ctx context.Context, username string) (bool, error) {
	normalized := strings.TrimSpace(username)
	if normalized == "" {
		return false, ErrUsernameRequired
	}
	res, err := c.db.Select(ctx, store.From(store.TableUsers).Select("id").ILike("username", escapeLike(normalized)).Head())
	if err != nil {
		return false, store.AsQueryError(err)
	}
	return res.CountOrZero() == 0, nil
}

func (c *Client) FetchProfile(ctx context.Context, id string) (*store.Profile, error) {
	return selectInto[*store.Profile](ctx, c.db, store.From(store.TableUsers).Select(profileColumns...).Eq("id", id).MaybeSingle())
}

// Identity is the part of an authenticated user a profile is derived from.
type Identity struct {
	ID       string
	Email    string
	Metadata map[string]any
}

type profileSeed struct {
	ID        string  `json:"id"`
	Username  *string `json:"username,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// EnsureProfile makes sure a users row exists for the identity and returns it.
// An existing username is kept; otherwise one is derived from the metadata
// user_name, then full_name, then the email local part.
func (c *Client) EnsureProfile(ctx context.Context, id Identity) (*store.Profile, error) {
	existing, err := selectInto[*struct {
		Username *string `json:"username"`
	}](ctx, c.db, store.From(store.TableUsers).Select("username").Eq("id", id.ID).MaybeSingle())
	if err != nil {
		return nil, err
	}

	username := ""
	if existing != nil && existing.Username != nil {
		username = *existing.Username
	}
	if username == "" {
		username = DeriveUsername(id)
	}
	seed := profileSeed{ID: id.ID}
	if username != "" {
		seed.Username = &username
	}
	if avatar := metadataString(id.Metadata, "avatar_url"); avatar != "" {
		seed.AvatarURL = &avatar
	}
	if _, err := c.mutate(ctx, store.Upsert(store.TableUsers, []string{"id"}, seed)); err != nil {
		return nil, err
	}
	return c.FetchProfile(ctx, id.ID)
}

func DeriveUsername(id Identity) string {
	for _, key := range []string{"user_name", "full_name"} {
		if v := metadataString(id.Metadata, key); v != "" {
			return v
		}
	}
	local, _, _ := strings.Cut(id.Email, "@")
	return local
}

func metadataString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
