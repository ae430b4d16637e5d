package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zjrosen/structds/internal/log"
)

// ProtocolFile is the protocol served by Local.
const ProtocolFile = "file"

// Local stores objects on the local filesystem. It accepts file:// URIs and
// scheme-less paths; relative paths resolve under the root directory.
type Local struct {
	root string
	perm os.FileMode
}

// NewLocal creates a Local store rooted at dir, creating it if needed.
func NewLocal(dir string, perm os.FileMode) (*Local, error) {
	if perm == 0 {
		perm = 0o644
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("local storage: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("local storage: mkdir %s: %w", abs, err)
	}
	return &Local{root: abs, perm: perm}, nil
}

func (l *Local) Protocol() string { return ProtocolFile }

// Root returns the absolute root directory.
func (l *Local) Root() string { return l.root }

// Path maps a URI to a filesystem path.
func (l *Local) Path(uri string) (string, error) {
	p := uri
	if rest, ok := strings.CutPrefix(uri, ProtocolFile+"://"); ok {
		p = rest
	} else if strings.Contains(uri, "://") {
		return "", fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidURI)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(l.root, p)
	}
	return filepath.Clean(p), nil
}

func (l *Local) Put(ctx context.Context, uri string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return wrap("local.put", uri, err)
	}
	path, err := l.Path(uri)
	if err != nil {
		return wrap("local.put", uri, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return wrap("local.put.mkdir", uri, err)
	}
	if err := os.WriteFile(path, data, l.perm); err != nil {
		return wrap("local.put.write", uri, err)
	}
	log.Debug(log.CatStorage, "Wrote object", "uri", uri, "bytes", len(data))
	return nil
}

func (l *Local) Get(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("local.get", uri, err)
	}
	path, err := l.Path(uri)
	if err != nil {
		return nil, wrap("local.get", uri, err)
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the dataset uri
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, wrap("local.get", uri, ErrNotFound)
		}
		return nil, wrap("local.get.read", uri, err)
	}
	return data, nil
}

func (l *Local) Delete(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return wrap("local.delete", uri, err)
	}
	path, err := l.Path(uri)
	if err != nil {
		return wrap("local.delete", uri, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return wrap("local.delete", uri, err)
	}
	return nil
}

func (l *Local) Exists(ctx context.Context, uri string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrap("local.exists", uri, err)
	}
	path, err := l.Path(uri)
	if err != nil {
		return false, wrap("local.exists", uri, err)
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, wrap("local.exists.stat", uri, err)
}

// NewURI returns file://<root>/<uuid>-<name>.
func (l *Local) NewURI(name string) string {
	return ProtocolFile + "://" + filepath.ToSlash(filepath.Join(l.root, randomName(name)))
}
