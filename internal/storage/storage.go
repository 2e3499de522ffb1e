// Package storage keeps featured images and hands out URLs to preview them.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/quill/internal/model"
)

var storageLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	storageLogger = l
}

var (
	ErrNotFound   = errors.New("file not found")
	ErrEmptyFile  = errors.New("file is empty")
	ErrBadFileRef = errors.New("invalid file reference")
)

type FileStore interface {
	Upload(ctx context.Context, file *model.ImageFile) (model.FileID, error)
	Delete(ctx context.Context, id model.FileID) error
	PreviewURL(ctx context.Context, id model.FileID) (string, error)
}

// newFileID names a stored object after a fresh uuid, keeping the image
// extension so browsers and buckets infer the type.
func newFileID(file *model.ImageFile) model.FileID {
	return model.FileID(uuid.New().String() + file.Extension())
}

func checkUpload(file *model.ImageFile) error {
	if file == nil || file.Size() == 0 {
		return ErrEmptyFile
	}
	return nil
}
