package submit

import (
	"context"

	"github.com/debemdeboas/quill/internal/model"
)

// FileStore holds featured images.
type FileStore interface {
	Upload(ctx context.Context, file *model.ImageFile) (model.FileID, error)
	Delete(ctx context.Context, id model.FileID) error
}

// PostRepository persists post records.
type PostRepository interface {
	Create(ctx context.Context, fields model.PostFields, owner model.UserID) (*model.Post, error)
	Update(ctx context.Context, id model.PostID, fields model.PostFields) (*model.Post, error)
}

// SessionProvider exposes the authenticated user of the current request.
type SessionProvider interface {
	CurrentUser(ctx context.Context) (model.UserID, error)
}

type Router interface {
	NavigateTo(path string)
}
