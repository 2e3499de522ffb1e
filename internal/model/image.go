package model

import (
	"path/filepath"
	"strings"
)

// ImageFile is a featured image selected in the editor and not yet uploaded.
type ImageFile struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f *ImageFile) Size() int64 {
	return int64(len(f.Data))
}

// AcceptedImageTypes maps the content types accepted for featured images
// to the extension used when storing them.
var AcceptedImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpg":  ".jpg",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
}

// Extension returns the stored file extension, preferring the one implied by
// the content type over the uploaded file name.
func (f *ImageFile) Extension() string {
	if ext, ok := AcceptedImageTypes[f.MediaType()]; ok {
		return ext
	}
	return strings.ToLower(filepath.Ext(f.Name))
}

// MediaType is the content type without parameters, lowercased.
func (f *ImageFile) MediaType() string {
	ct, _, _ := strings.Cut(f.ContentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

func (f *ImageFile) Accepted() bool {
	_, ok := AcceptedImageTypes[f.MediaType()]
	return ok
}
