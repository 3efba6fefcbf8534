package mfconfig

import (
	"bytes"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ygrebnov/mftasks/streams"
)

// Persister writes normalized MetricFlow configs to a filesystem.
type Persister struct {
	fs      afero.Fs
	streams streams.Streams
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithPersisterStreams routes "persisted config" notices to s.
func WithPersisterStreams(s streams.Streams) PersisterOption {
	return func(p *Persister) {
		p.streams = s
	}
}

// NewPersister returns a Persister backed by fs. A nil fs selects the OS
// filesystem.
func NewPersister(fs afero.Fs, opts ...PersisterOption) *Persister {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	p := &Persister{fs: fs}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Persist normalizes v and replaces the content of the file at path with its
// YAML serialization. Nothing is written when normalization fails. Parent
// directories are not created.
func (p *Persister) Persist(v Value, path string) error {
	m, err := v.Normalize()
	if err != nil {
		return err
	}
	if err := writeToFile(p.fs, path, m); err != nil {
		return err
	}
	streams.Noticef(p.streams, "mfconfig: persisted config to %s\n", path)
	return nil
}

// Load reads and parses the YAML config at path.
func (p *Persister) Load(path string) (map[string]any, error) {
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrRead, path, err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrRead, path, err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// Persist writes v to path on the OS filesystem.
func Persist(v Value, path string) error {
	return NewPersister(nil).Persist(v, path)
}

// Marshal renders m as canonical YAML: keys sorted, two-space indent.
func Marshal(m map[string]any) (data []byte, retErr error) {
	// yaml.v3 panics on some unsupported kinds (e.g. func values).
	defer func() {
		if r := recover(); r != nil {
			data = nil
			retErr = fmt.Errorf("%w: %v", ErrFormat, r)
		}
	}()

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return buf.Bytes(), nil
}

// newFileMode is used when the destination does not exist yet.
const newFileMode = 0o600

// maxLinkHops bounds symlink resolution of the destination.
const maxLinkHops = 40

func writeToFile(fs afero.Fs, path string, m map[string]any) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}

	target, err := resolveLinks(fs, path)
	if err != nil {
		return fmt.Errorf("%w %s: resolve symlink: %w", ErrWrite, path, err)
	}
	mode := os.FileMode(newFileMode)
	if info, err := fs.Stat(target); err == nil && info.Mode().IsRegular() {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(target)
	tmpFile, err := afero.TempFile(fs, dir, "temp-config-*"+filepath.Ext(target))
	if err != nil {
		return fmt.Errorf("%w %s: create temp file: %w", ErrWrite, path, err)
	}
	tmpName := tmpFile.Name()
	defer fs.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w %s: %w", ErrWrite, path, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("%w %s: close temp file: %w", ErrWrite, path, err)
	}
	if err := fs.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("%w %s: chmod temp file: %w", ErrWrite, path, err)
	}
	if err := fs.Rename(tmpName, target); err != nil {
		return fmt.Errorf("%w %s: rename temp file: %w", ErrWrite, path, err)
	}
	return nil
}

// resolveLinks follows symlinks at path so the rename replaces the file the
// link points to, not the link. Filesystems without link support return path
// unchanged. A dangling link resolves to its missing target.
func resolveLinks(fs afero.Fs, path string) (string, error) {
	lstater, ok := fs.(afero.Lstater)
	if !ok {
		return path, nil
	}
	reader, ok := fs.(afero.LinkReader)
	if !ok {
		return path, nil
	}
	for i := 0; i < maxLinkHops; i++ {
		info, _, err := lstater.LstatIfPossible(path)
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				return path, nil
			}
			return "", err
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return path, nil
		}
		dest, err := reader.ReadlinkIfPossible(path)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(filepath.Dir(path), dest)
		}
		path = dest
	}
	return "", errors.New("too many levels of symbolic links")
}
