package storage

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/debemdeboas/quill/internal/config"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/routes"
)

// MemoryFileStore keeps images in process and serves them under /files/.
type MemoryFileStore struct {
	files sync.Map // model.FileID -> *model.ImageFile
}

func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{}
}

func (m *MemoryFileStore) Upload(_ context.Context, file *model.ImageFile) (model.FileID, error) {
	if err := checkUpload(file); err != nil {
		return "", err
	}

	id := newFileID(file)
	stored := *file
	stored.Data = append([]byte(nil), file.Data...)
	m.files.Store(id, &stored)

	storageLogger.Debug().Str("file_id", string(id)).Int64("size", file.Size()).Msg("Image stored in memory")
	return id, nil
}

func (m *MemoryFileStore) Delete(_ context.Context, id model.FileID) error {
	if _, ok := m.files.LoadAndDelete(id); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (m *MemoryFileStore) PreviewURL(_ context.Context, id model.FileID) (string, error) {
	if _, ok := m.files.Load(id); !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return routes.FilePath(string(id)), nil
}

func (m *MemoryFileStore) Open(id model.FileID) (*model.ImageFile, error) {
	f, ok := m.files.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return f.(*model.ImageFile), nil
}

// ServeHTTP answers routes.FileServe.
func (m *MemoryFileStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f, err := m.Open(model.FileID(r.PathValue("id")))
	if err != nil {
		http.Error(w, config.ErrFileNotFound, http.StatusNotFound)
		return
	}

	w.Header().Set(config.HCType, f.MediaType())
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size(), 10))
	w.Header().Set(config.HCacheControl, "public, max-age=31536000, immutable")
	if _, err := w.Write(f.Data); err != nil {
		storageLogger.Warn().Err(err).Str("file_id", r.PathValue("id")).Msg("Failed to write file")
	}
}
