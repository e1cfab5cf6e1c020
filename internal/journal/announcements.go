package journal

import (
	"context"
	"time"

	"journal/api/internal/store"
)

const DefaultAnnouncements = 5

var announcementColumns = []string{"id", "title", "body_md", "created_at", "updated_at", "author_id"}

func (c *Client) FetchAnnouncements(ctx context.Context, limit int) ([]store.Announcement, error) {
	if limit <= 0 {
		limit = DefaultAnnouncements
	}
	return selectInto[[]store.Announcement](ctx, c.db, store.From(store.TableAnnouncements).
		Select(announcementColumns...).
		Order("created_at", false).
		Limit(limit))
}

func (c *Client) FetchAnnouncementsPage(ctx context.Context, p PageParams) (Page[store.Announcement], error) {
	col, err := p.orderColumn("created_at", "updated_at", "title")
	if err != nil {
		return Page[store.Announcement]{}, err
	}
	q := store.From(store.TableAnnouncements).Select(announcementColumns...).Order(col, p.Ascending)
	return selectPage[store.Announcement](ctx, c.db, q, p)
}

type AnnouncementInput struct {
	Title    string  `json:"title"`
	BodyMD   *string `json:"body_md"`
	AuthorID *string `json:"author_id,omitempty"`
}

// AnnouncementPatch leaves nil fields unchanged.
type AnnouncementPatch struct {
	Title  *string `json:"title,omitempty"`
	BodyMD *string `json:"body_md,omitempty"`
}

func (c *Client) CreateAnnouncement(ctx context.Context, in AnnouncementInput) error {
	_, err := c.mutate(ctx, store.Insert(store.TableAnnouncements, in))
	return err
}

func (c *Client) UpdateAnnouncement(ctx context.Context, id string, patch AnnouncementPatch) error {
	_, err := c.mutate(ctx, store.Update(store.TableAnnouncements, struct {
		AnnouncementPatch
		UpdatedAt time.Time `json:"updated_at"`
	}{patch, c.timestamp()}).Eq("id", id))
	return err
}

func (c *Client) DeleteAnnouncement(ctx context.Context, id string) error {
	_, err := c.mutate(ctx, store.Delete(store.TableAnnouncements).Eq("id", id))
	return err
}
