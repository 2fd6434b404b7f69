package gallery

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp"

	"tourbook/internal/model"
)

const (
	PublicPrefix   = "/uploads/"
	MaxUploadBytes = 20 << 20
	coverPrefix    = "event-"
)

var (
	ErrNotFound = errors.New("file not found")
	ErrNotImage = fmt.Errorf("%w: file must be an image", model.ErrValidation)
	ErrNoFile   = fmt.Errorf("%w: no file uploaded", model.ErrValidation)
	ErrBadName  = fmt.Errorf("%w: invalid filename", model.ErrValidation)
	ErrBadExt   = fmt.Errorf("%w: invalid file extension", model.ErrValidation)
	ErrTooLarge = fmt.Errorf("%w: file is too large", model.ErrValidation)
	imageExtRex = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)$`)
	nonAlnumRex = regexp.MustCompile(`[^a-zA-Z0-9]+`)
	dashRunRex  = regexp.MustCompile(`-+`)
)

type Photo struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

type Stored struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// Storage keeps gallery photos and event covers as plain files in one directory.
type Storage struct {
	dir string
	log *zerolog.Logger
	now func() time.Time
}

func NewStorage(dir string, log *zerolog.Logger) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Storage{dir: dir, log: log, now: time.Now}, nil
}

func (s *Storage) Dir() string { return s.dir }

// Sanitize lowercases a file name and reduces its base to alphanumerics
// separated by single dashes. The extension is kept.
func Sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = nonAlnumRex.ReplaceAllString(base, "-")
	base = dashRunRex.ReplaceAllString(base, "-")
	base = strings.Trim(strings.ToLower(base), "-")
	if base == "" {
		base = "image"
	}
	return base + ext
}

func IsImageName(name string) bool {
	return imageExtRex.MatchString(name)
}

// SavePhoto stores a gallery photo as <unixms>-<name>.
func (s *Storage) SavePhoto(name, contentType string, r io.Reader) (*Stored, error) {
	return s.save("", name, contentType, r)
}

// SaveCover stores an event cover image as event-<unixms>-<name>.
func (s *Storage) SaveCover(name, contentType string, r io.Reader) (*Stored, error) {
	return s.save(coverPrefix, name, contentType, r)
}

func (s *Storage) save(prefix, name, contentType string, r io.Reader) (*Stored, error) {
	if name == "" || r == nil {
		return nil, ErrNoFile
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotImage
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
		s.log.Warn().Err(err).Str("name", name).Msg("upload rejected, not a decodable image")
		return nil, ErrNotImage
	}

	filename := prefix + strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + Sanitize(name)
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}

	s.log.Info().Str("filename", filename).Int("bytes", len(data)).Msg("upload stored")
	return &Stored{Filename: filename, Path: PublicPrefix + filename}, nil
}

// List returns every image file in the directory, newest name first.
func (s *Storage) List() ([]Photo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read uploads dir: %w", err)
	}

	photos := make([]Photo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsImageName(e.Name()) {
			continue
		}
		photos = append(photos, Photo{Filename: e.Name(), URL: PublicPrefix + e.Name()})
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].Filename > photos[j].Filename })
	return photos, nil
}

func (s *Storage) Delete(filename string) error {
	switch {
	case filename == "":
		return fmt.Errorf("%w: no filename provided", model.ErrValidation)
	case !IsImageName(filename):
		return ErrBadExt
	case strings.Contains(filename, "..") || strings.HasPrefix(filename, "/") || strings.HasPrefix(filename, "\\"):
		return ErrBadName
	}

	path := filepath.Join(s.dir, filename)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete upload: %w", err)
	}

	s.log.Info().Str("filename", filename).Msg("upload deleted")
	return nil
}
