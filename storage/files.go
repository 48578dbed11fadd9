// Package storage persists image artifacts on the local filesystem. Every
// artifact is re-encoded as JPEG so the upload directory holds a single,
// predictable format regardless of what clients send.
package storage

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"aesthetisim/vision"
)

// JPEGQuality is the encoder quality for stored artifacts.
const JPEGQuality = 90

const (
	originalPrefix  = "original_"
	generatedPrefix = "generated_"
	artifactExt     = ".jpg"
)

// FileStore writes artifacts into a single directory and hands back opaque
// references (bare file names). It implements the simulation image store.
type FileStore struct {
	dir string
}

// NewFileStore creates the artifact directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage: artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating artifact directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the artifact directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// SaveOriginal stores an uploaded patient photo. Originals are written
// exactly once; the exclusive create means a reference can never be
// silently overwritten.
func (s *FileStore) SaveOriginal(data []byte) (string, error) {
	return s.save(originalPrefix, data)
}

// SaveGenerated stores a generation result.
func (s *FileStore) SaveGenerated(data []byte) (string, error) {
	return s.save(generatedPrefix, data)
}

func (s *FileStore) save(prefix string, data []byte) (string, error) {
	encoded, err := reencodeJPEG(data)
	if err != nil {
		return "", err
	}

	ref := prefix + uuid.NewString() + artifactExt
	f, err := os.OpenFile(filepath.Join(s.dir, ref), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: creating artifact %s: %w", ref, err)
	}

	if _, err := f.Write(encoded); err != nil {
		f.Close()
		os.Remove(filepath.Join(s.dir, ref))
		return "", fmt.Errorf("storage: writing artifact %s: %w", ref, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(filepath.Join(s.dir, ref))
		return "", fmt.Errorf("storage: closing artifact %s: %w", ref, err)
	}

	return ref, nil
}

// Load reads an artifact's bytes by reference.
func (s *FileStore) Load(ref string) ([]byte, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: reading artifact %s: %w", ref, err)
	}
	return data, nil
}

// Remove deletes an artifact. Removing an artifact that is already gone is
// not an error.
func (s *FileStore) Remove(ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: removing artifact %s: %w", ref, err)
	}
	return nil
}

// resolve validates a reference and maps it to a path inside the artifact
// directory. References are bare file names; anything with a path
// component is rejected to keep callers from escaping the directory.
func (s *FileStore) resolve(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("storage: empty artifact reference")
	}
	if ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", fmt.Errorf("storage: invalid artifact reference %q", ref)
	}
	return filepath.Join(s.dir, ref), nil
}

// reencodeJPEG decodes arbitrary image bytes and encodes them as JPEG.
func reencodeJPEG(data []byte) ([]byte, error) {
	img, err := vision.DecodeImage(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, vision.ConvertToRGB(img), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("storage: encoding artifact: %w", err)
	}
	return buf.Bytes(), nil
}
