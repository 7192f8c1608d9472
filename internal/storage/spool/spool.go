package spool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrTooLarge = errors.New("object exceeds limit")

// Spool buffers objects of unknown length on local disk so they can be
// measured before they are uploaded.
type Spool struct {
	Dir string
}

// New returns a spool writing into dir, creating it when needed. An empty
// dir means the system temp directory.
func New(dir string) (*Spool, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to make spool dir: %w", err)
	}

	return &Spool{Dir: dir}, nil
}

// File is a spooled object positioned at its first byte. Close removes it.
type File struct {
	*os.File
	Size int64
}

func (f *File) Close() error {
	err := f.File.Close()
	if rmErr := os.Remove(f.Name()); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// Buffer copies src to disk. It fails with ErrTooLarge as soon as more than
// limit bytes have been read.
func (s *Spool) Buffer(ctx context.Context, src io.Reader, limit int64) (*File, error) {
	tmp, err := os.CreateTemp(s.Dir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	f := &File{File: tmp}

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: io.LimitReader(src, limit+1)})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("spool copy: %w", err)
	}
	if n > limit {
		f.Close()
		return nil, ErrTooLarge
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("spool rewind: %w", err)
	}

	f.Size = n
	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
