package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FilePersister will persist files. It abstracts away the where and how of
// writing files to the destination.
type FilePersister interface {
	Persist(ctx context.Context, path string, data io.Reader) error
}

// LocalFilePersister will persist files to the local disk.
type LocalFilePersister struct {
	// Directory relative paths are resolved against, the current directory if empty
	BaseDir string
}

// Persist writes the contents of data to the local disk on the specified path.
// The file is written next to its destination first and renamed into place, so a
// failed capture never leaves a truncated image behind.
func (l *LocalFilePersister) Persist(ctx context.Context, path string, data io.Reader) (err error) {
	cp := filepath.Clean(path)
	if !filepath.IsAbs(cp) && l.BaseDir != "" {
		cp = filepath.Join(l.BaseDir, cp)
	}

	dir := filepath.Dir(cp)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating a local directory %q: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(cp)+".*")
	if err != nil {
		return fmt.Errorf("creating a local file %q: %w", cp, err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	if _, err = io.Copy(f, contextReader{ctx: ctx, r: data}); err != nil {
		return fmt.Errorf("writing a local file %q: %w", cp, err)
	}

	if err = f.Chmod(0o644); err != nil {
		return fmt.Errorf("setting permissions of %q: %w", cp, err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("closing the local file %q: %w", cp, err)
	}

	if err = os.Rename(f.Name(), cp); err != nil {
		return fmt.Errorf("moving the local file into %q: %w", cp, err)
	}

	return nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}

	return r.r.Read(p)
}
