package eeprom

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File is a Device backed by an image file. The whole image is cached in
// memory; Commit replaces the file atomically so a power loss leaves
// either the old or the new image.
type File struct {
	path  string
	cache []byte
}

// OpenFile opens (or creates, erased) the image at path. An image of a
// different size is truncated or padded with erased cells.
func OpenFile(path string, size int) (*File, error) {
	if size <= 0 {
		return nil, fmt.Errorf("eeprom: invalid size %d", size)
	}

	cache := erasedBlock(size)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		copy(cache, data)
	case errors.Is(err, fs.ErrNotExist):
		// First boot: region reads as erased.
	default:
		return nil, fmt.Errorf("read eeprom image: %w", err)
	}

	return &File{path: path, cache: cache}, nil
}

// Size returns the region size.
func (f *File) Size() int { return len(f.cache) }

// ReadAt reads from the cache.
func (f *File) ReadAt(p []byte, off int) error {
	if err := checkRange(len(f.cache), off, len(p)); err != nil {
		return err
	}
	copy(p, f.cache[off:])
	return nil
}

// WriteAt writes to the cache.
func (f *File) WriteAt(p []byte, off int) error {
	if err := checkRange(len(f.cache), off, len(p)); err != nil {
		return err
	}
	copy(f.cache[off:], p)
	return nil
}

// Commit writes the image to a temporary file, syncs it, renames it over
// the old image and syncs the directory.
func (f *File) Commit() error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp image: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(f.cache); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp image: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp image: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace image: %w", err)
	}
	return syncDir(dir)
}

// syncDir flushes the directory entry so the rename survives a power cut.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open image dir: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync image dir: %w", err)
	}
	return nil
}

// Close is a no-op; the file is only open during Commit.
func (f *File) Close() error {
	return nil
}
