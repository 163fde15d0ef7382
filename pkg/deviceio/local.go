package deviceio

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Local implements IO against a device exposed as a mounted filesystem.
type Local struct {
	root string
}

func NewLocal(root string) *Local {
	return &Local{root: root}
}

func (l *Local) resolve(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(strings.TrimPrefix(path, "/")))
}

func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(l.resolve(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, errors.WithStack(err)
	}
	return true, nil
}

func (l *Local) Read(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(l.resolve(path))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

func (l *Local) Write(_ context.Context, data []byte, path string) error {
	target := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(target, data, 0644)) //nolint:gosec
}

func (l *Local) Remove(_ context.Context, path string) error {
	return errors.WithStack(os.Remove(l.resolve(path)))
}

func (l *Local) Rename(_ context.Context, oldPath, newPath string) error {
	return errors.WithStack(os.Rename(l.resolve(oldPath), l.resolve(newPath)))
}

func (l *Local) Mkdir(_ context.Context, path string) error {
	return errors.WithStack(os.MkdirAll(l.resolve(path), 0755))
}

func (l *Local) CopyFromDevice(_ context.Context, path, localPath string) error {
	return copyFile(l.resolve(path), localPath)
}

func (l *Local) CopyToDevice(_ context.Context, localPath, path string) error {
	target := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.WithStack(err)
	}
	return copyFile(localPath, target)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.WithStack(err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.WithStack(err)
	}

	return errors.WithStack(out.Close())
}
