// Package compression stores post content compactly.
package compression

import "fmt"

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// ByName returns the compressor configured under name. The empty name
// selects zstd.
func ByName(name string) (Compressor, error) {
	switch name {
	case "", "zstd":
		return ZstdCompressor{}, nil
	case "gzip":
		return GzipCompressor{}, nil
	case "none":
		return NoopCompressor{}, nil
	}
	return nil, fmt.Errorf("unknown compression %q", name)
}

// NoopCompressor stores content as is.
type NoopCompressor struct{}

func (NoopCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (NoopCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}
