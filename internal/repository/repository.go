// Package repository stores post records.
package repository

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/quill/internal/model"
)

var repoLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

var (
	ErrNotFound  = errors.New("post not found")
	ErrSlugTaken = errors.New("slug already in use")
)

type PostRepository interface {
	Create(ctx context.Context, fields model.PostFields, owner model.UserID) (*model.Post, error)
	Update(ctx context.Context, id model.PostID, fields model.PostFields) (*model.Post, error)
	Get(ctx context.Context, id model.PostID) (*model.Post, error)
	List(ctx context.Context) ([]model.Post, error)

	// SetReloadNotifier sets a function that will be called when a stored post changes.
	SetReloadNotifier(notifier func(model.PostID))
}
