package device

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/crimson-sun/fluidity/internal/extopt"
)

type fileOptions struct {
	FromStart bool `opt:"fromStart"`
}

// File tails an append-only capture file. Reads block at end of file until
// fsnotify reports a write or the context ends.
type File struct {
	Path      string
	FromStart bool

	delim string
}

func newFile(path, delim string, ext map[string]any) (*File, error) {
	var o fileOptions
	if err := extopt.Decode(ext, &o); err != nil {
		return nil, fmt.Errorf("%w: file options: %v", ErrInvalidAddress, err)
	}
	return &File{Path: filepath.Clean(path), FromStart: o.FromStart, delim: delim}, nil
}

func (f *File) Open(ctx context.Context) (io.ReadCloser, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	if !f.FromStart {
		if _, err := fh.Seek(0, io.SeekEnd); err != nil {
			fh.Close()
			return nil, fmt.Errorf("seek capture file: %w", err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("watch capture file: %w", err)
	}
	if err := w.Add(f.Path); err != nil {
		w.Close()
		fh.Close()
		return nil, fmt.Errorf("watch capture file: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	return &tail{ctx: ctx, cancel: cancel, f: fh, w: w}, nil
}

func (f *File) Delimiter() string { return f.delim }

func (f *File) String() string { return "file://" + f.Path }

type tail struct {
	ctx    context.Context
	cancel context.CancelFunc
	f      *os.File
	w      *fsnotify.Watcher
	once   sync.Once
}

func (t *tail) Read(p []byte) (int, error) {
	for {
		n, err := t.f.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && err != io.EOF {
			return 0, err
		}

		select {
		case <-t.ctx.Done():
			return 0, t.ctx.Err()
		case ev, ok := <-t.w.Events:
			if !ok {
				return 0, io.EOF
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				return 0, io.EOF
			}
		case err, ok := <-t.w.Errors:
			if !ok {
				return 0, io.EOF
			}
			return 0, err
		}
	}
}

func (t *tail) Close() error {
	var err error
	t.once.Do(func() {
		t.cancel()
		werr := t.w.Close()
		err = t.f.Close()
		if err == nil {
			err = werr
		}
	})
	return err
}
