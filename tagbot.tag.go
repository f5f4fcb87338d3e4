package tagbot

import "time"

// TagRecord is a stored tag.
type TagRecord struct {
	// ID is an opaque identifier assigned at creation ("tag_..." form).
	ID string `json:"id"`

	// GuildID is the scope the tag belongs to.
	GuildID string `json:"guild_id"`

	// Name is unique within GuildID and never changes.
	Name string `json:"name"`

	// Content is the raw template: plain text or a JSON object document.
	Content string `json:"content"`

	// Author is the owning user's ID.
	Author string `json:"author"`

	// CreatedAt is set once at creation.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is refreshed on edit and claim.
	UpdatedAt time.Time `json:"updated_at"`

	// Uses counts successful invocations.
	Uses int64 `json:"uses"`
}

// copyTagRecord returns a shallow copy; TagRecord holds no reference types.
func copyTagRecord(r *TagRecord) *TagRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
