package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindProof    Kind = "payment_proofs"
	KindDocument Kind = "move_reports"
	KindPhoto    Kind = "profile_photos"
)

var (
	ErrTooLarge        = errors.New("file is too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmpty           = errors.New("file is empty")
)

var documentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// Upload is a file received from a client.
type Upload struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// Store keeps uploaded files below a root directory. Returned paths are
// relative to that root.
type Store struct {
	root      string
	maxBytes  int64
	photoEdge int
	logger    *logrus.Logger
}

func NewStore(root string, maxBytes int64, photoEdge int, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if photoEdge <= 0 {
		photoEdge = 512
	}
	return &Store{root: root, maxBytes: maxBytes, photoEdge: photoEdge, logger: logger}, nil
}

// read pulls the whole upload in memory, one byte past the limit so an
// oversized file is detected even when the declared size lies.
func (s *Store) read(up *Upload) ([]byte, error) {
	if up == nil || up.Reader == nil {
		return nil, ErrEmpty
	}
	if s.maxBytes > 0 && up.Size > s.maxBytes {
		return nil, ErrTooLarge
	}
	limit := s.maxBytes + 1
	if s.maxBytes <= 0 {
		limit = 1 << 62
	}
	data, err := io.ReadAll(io.LimitReader(up.Reader, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Save stores a PDF, JPEG or PNG document and returns its relative path.
func (s *Store) Save(kind Kind, up *Upload) (string, error) {
	data, err := s.read(up)
	if err != nil {
		return "", err
	}

	mtype := mimetype.Detect(data)
	ext, ok := documentTypes[baseMIME(mtype.String())]
	if !ok {
		s.logger.WithFields(logrus.Fields{
			"name": up.Name,
			"mime": mtype.String(),
		}).Warn("Rejected upload with unsupported type")
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	return s.write(kind, ext, data)
}

// SavePhoto decodes an image, fits it into the configured square and stores
// it as JPEG.
func (s *Store) SavePhoto(up *Upload) (string, error) {
	data, err := s.read(up)
	if err != nil {
		return "", err
	}

	mtype := baseMIME(mimetype.Detect(data).String())
	if mtype != "image/jpeg" && mtype != "image/png" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mtype)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	img = s.fit(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to encode photo: %w", err)
	}
	return s.write(KindPhoto, ".jpg", buf.Bytes())
}

func (s *Store) fit(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= s.photoEdge && b.Dy() <= s.photoEdge {
		return img
	}
	return imaging.Fit(img, s.photoEdge, s.photoEdge, imaging.Lanczos)
}

func (s *Store) write(kind Kind, ext string, data []byte) (string, error) {
	dir := filepath.Join(s.root, string(kind))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	rel := filepath.ToSlash(filepath.Join(string(kind), uuid.NewString()+ext))
	if err := os.WriteFile(filepath.Join(s.root, rel), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"path": rel,
		"size": len(data),
	}).Debug("Stored upload")
	return rel, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Store) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("refusing to remove %q outside upload directory", rel)
	}
	if err := os.Remove(filepath.Join(s.root, clean)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// Path resolves a stored relative path to its location on disk.
func (s *Store) Path(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func baseMIME(m string) string {
	if i := strings.Index(m, ";"); i >= 0 {
		return m[:i]
	}
	return m
}
