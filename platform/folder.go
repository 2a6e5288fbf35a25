package platform

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// File is one named blob.
type File interface {
	Delete(ctx context.Context) error
	GetData(ctx context.Context) ([]byte, error)
	GetText(ctx context.Context) (string, error)
	SetData(ctx context.Context, data []byte) error
	SetText(ctx context.Context, text string) error
}

// Folder is a hierarchical blob store.
type Folder interface {
	File(name string) File
	Folder(name string) Folder
	Delete(ctx context.Context) error
	ListFiles(ctx context.Context) ([]string, error)
	ListFolders(ctx context.Context) ([]string, error)
}

// IsNotExist reports whether err means the file does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

type aferoFolder struct {
	fs  afero.Fs
	dir string
}

type aferoFile struct {
	fs   afero.Fs
	name string
}

var (
	_ Folder = (*aferoFolder)(nil)
	_ File   = (*aferoFile)(nil)
)

// NewFolder roots a Folder at dir inside fs.
func NewFolder(fsys afero.Fs, dir string) Folder {
	return &aferoFolder{fs: fsys, dir: path.Clean("/" + dir)}
}

// NewDiskFolder stores blobs under dir on the local disk.
func NewDiskFolder(dir string) Folder {
	return NewFolder(afero.NewBasePathFs(afero.NewOsFs(), dir), "/")
}

// NewMemoryFolder keeps blobs in memory.
func NewMemoryFolder() Folder {
	return NewFolder(afero.NewMemMapFs(), "/")
}

func cleanName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	if name == "." || name == ".." || name == "" {
		return "_" + name
	}
	return name
}

func (f *aferoFolder) File(name string) File {
	return &aferoFile{fs: f.fs, name: path.Join(f.dir, cleanName(name))}
}

func (f *aferoFolder) Folder(name string) Folder {
	return &aferoFolder{fs: f.fs, dir: path.Join(f.dir, cleanName(name))}
}

func (f *aferoFolder) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.fs.RemoveAll(f.dir); err != nil {
		return fmt.Errorf("failed to delete folder %s: %w", f.dir, err)
	}
	return nil
}

func (f *aferoFolder) ListFiles(ctx context.Context) ([]string, error) {
	return f.list(ctx, false)
}

func (f *aferoFolder) ListFolders(ctx context.Context) ([]string, error) {
	return f.list(ctx, true)
}

func (f *aferoFolder) list(ctx context.Context, dirs bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(f.fs, f.dir)
	if err != nil {
		if IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", f.dir, err)
	}
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() != dirs || strings.HasSuffix(info.Name(), ".tmp") {
			continue
		}
		out = append(out, info.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (f *aferoFile) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.fs.Remove(f.name); err != nil && !IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", f.name, err)
	}
	return nil
}

func (f *aferoFile) GetData(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(f.fs, f.name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.name, err)
	}
	return data, nil
}

func (f *aferoFile) GetText(ctx context.Context) (string, error) {
	data, err := f.GetData(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetData writes through a temp file and a rename so readers never see a
// partial blob.
func (f *aferoFile) SetData(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.fs.MkdirAll(path.Dir(f.name), 0o700); err != nil {
		return fmt.Errorf("failed to create folder for %s: %w", f.name, err)
	}
	tmp := f.name + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.name, err)
	}
	if err := f.fs.Rename(tmp, f.name); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", f.name, err)
	}
	return nil
}

func (f *aferoFile) SetText(ctx context.Context, text string) error {
	return f.SetData(ctx, []byte(text))
}
