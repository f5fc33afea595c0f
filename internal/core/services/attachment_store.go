package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"facture-workflow/internal/core/domain"

	"github.com/google/uuid"
)

// ErrAttachmentNotFound is returned when an invoice has no stored file
var ErrAttachmentNotFound = errors.New("attachment not found")

// AttachmentStore keeps invoice scans on local disk under a single
// directory. Stored names are random so uploads never collide.
type AttachmentStore struct {
	dir      string
	maxBytes int64
}

// NewAttachmentStore creates a store rooted at dir
func NewAttachmentStore(dir string, maxBytes int64) *AttachmentStore {
	if maxBytes <= 0 || maxBytes > domain.MaxAttachmentSize {
		maxBytes = domain.MaxAttachmentSize
	}
	return &AttachmentStore{dir: dir, maxBytes: maxBytes}
}

// Save writes r under a fresh name and returns that name. Reads beyond the
// size limit fail and leave nothing behind.
func (s *AttachmentStore) Save(r io.Reader, mimeType string) (string, int64, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", 0, fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.New().String() + domain.AttachmentExt(mimeType)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", 0, err
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxBytes {
		err = domain.ValidationErrors{"file": "must not exceed 10MB"}
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, err
	}
	return name, n, nil
}

// Open opens a stored file for reading
func (s *AttachmentStore) Open(name string) (*os.File, error) {
	f, err := os.Open(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrAttachmentNotFound
	}
	return f, err
}

// Remove deletes a stored file; a missing file is not an error
func (s *AttachmentStore) Remove(name string) error {
	if name == "" {
		return nil
	}
	err := os.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// path confines name to the store directory
func (s *AttachmentStore) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}
