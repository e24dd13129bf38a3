package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Format selects a serialized representation.
type Format int

const (
	FormatBinary Format = iota
	FormatJSON
)

// FormatForPath picks the format from the file extension: ".json" is JSON,
// anything else is binary.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatBinary
}

// Encode serializes d in the given format.
func (d *Document) Encode(f Format) ([]byte, error) {
	if f == FormatJSON {
		return d.ToJSON()
	}
	return d.ToBinary()
}

// Decode parses data in the given format.
func Decode(data []byte, f Format) (*Document, error) {
	if f == FormatJSON {
		return FromJSON(data)
	}
	return FromBinary(data)
}

// FileStore reads and writes document files on an afero filesystem.
type FileStore struct {
	fs afero.Fs
}

// NewFileStore returns a FileStore on fsys. A nil fsys means the OS
// filesystem.
func NewFileStore(fsys afero.Fs) *FileStore {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileStore{fs: fsys}
}

// Fs exposes the underlying filesystem.
func (s *FileStore) Fs() afero.Fs {
	return s.fs
}

// SaveTo atomically replaces path with data: the bytes go to a temporary
// sibling first, which is then renamed over the target.
func (s *FileStore) SaveTo(path string, data []byte) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	tmp := path + ".tmp"
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err = s.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// Save encodes d in the format implied by path and writes it.
func (s *FileStore) Save(path string, d *Document) error {
	data, err := d.Encode(FormatForPath(path))
	if err != nil {
		return err
	}
	return s.SaveTo(path, data)
}

// ReadBytes returns the raw file content, classifying failures as
// ErrFileNotFound or ErrFileUnreadable.
func (s *FileStore) ReadBytes(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		kind := ErrFileUnreadable
		if errors.Is(err, fs.ErrNotExist) {
			kind = ErrFileNotFound
		}
		return nil, &LoadError{Kind: kind, Path: path, Err: err}
	}
	return data, nil
}

// LoadFrom reads and parses the document at path. The error, if any, is a
// *LoadError whose Kind tells a missing or unreadable file apart from one
// with unparsable content.
func (s *FileStore) LoadFrom(path string) (*Document, error) {
	data, err := s.ReadBytes(path)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(data, FormatForPath(path))
	if err != nil {
		return nil, &LoadError{Kind: ErrFileUnparsable, Path: path, Err: err}
	}
	return doc, nil
}

// LoadOrNew behaves like LoadFrom but returns an empty document when the
// file does not exist. Unreadable or unparsable files are still errors.
func (s *FileStore) LoadOrNew(path string) (*Document, error) {
	doc, err := s.LoadFrom(path)
	if errors.Is(err, ErrFileNotFound) {
		return New(), nil
	}
	return doc, err
}
