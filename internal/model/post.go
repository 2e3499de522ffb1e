// Package model defines core data structures and types for the blog application.
package model

import (
	"time"

	"github.com/debemdeboas/quill/internal/routes"
)

type PostID string

type UserID string

// FileID identifies an object in the file store.
type FileID string

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"

	DefaultStatus = StatusActive
)

// Statuses lists the values offered by the status select, in display order.
var Statuses = []Status{StatusActive, StatusInactive}

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// PostFields are the user-editable values written on create and update.
type PostFields struct {
	Title         string
	Slug          string
	Content       string
	Status        Status
	FeaturedImage FileID
}

type Post struct {
	ID PostID

	Title   string
	Slug    string
	Content string
	Status  Status

	// Optional: posts may be edited without ever having had an image.
	FeaturedImage FileID

	// Used for cache busting and change detection.
	ContentHash string

	CreatedDate  time.Time
	ModifiedDate time.Time

	Owner UserID
}

// URLPath is the detail view of the post.
func (p *Post) URLPath() string {
	return routes.PostPath(string(p.ID))
}

// PostCard is the summary shown in post listings.
type PostCard struct {
	ID         PostID `json:"id"`
	Title      string `json:"title"`
	PreviewURL string `json:"preview_url,omitempty"`
	Path       string `json:"path"`
}
