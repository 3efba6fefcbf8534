package mfconfig

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ygrebnov/mftasks/streams"
)

func readYAML(t *testing.T, fsys afero.Fs, p string) map[string]any {
	t.Helper()
	b, err := afero.ReadFile(fsys, p)
	if err != nil {
		t.Fatalf("read back %s: %v", p, err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		t.Fatalf("parse back %s: %v", p, err)
	}
	return m
}

func TestPersister_Persist(t *testing.T) {
	rootLeaf := map[string]any{"root": map[string]any{"leaf": "foo"}}

	tests := []struct {
		name      string
		existing  string // prior file content, if non-empty
		value     Value
		path      string
		want      map[string]any
		wantErrIs error
		wantMsg   string
	}{
		{
			name:  "structured mapping",
			value: Structured(rootLeaf),
			path:  "cfg.yaml",
			want:  rootLeaf,
		},
		{
			name:  "yaml text",
			value: Text("root:\n  leaf: foo\n"),
			path:  "cfg.yaml",
			want:  rootLeaf,
		},
		{
			name:     "overwrites an existing file",
			existing: "stale: true\nother: 1\n",
			value:    Structured(rootLeaf),
			path:     "mf_config_dir/config.yaml",
			want:     rootLeaf,
		},
		{
			name:  "connection settings",
			value: Text("dwh_dialect: postgresql\ndwh_host: localhost\ndwh_port: 5432\ndwh_user: metricsuser\ndwh_database: metrics\ndwh_schema: mf_demo\nmodel_path: ./models\n"),
			path:  "mf_config_dir/config.yml",
			want: map[string]any{
				"dwh_dialect":  "postgresql",
				"dwh_host":     "localhost",
				"dwh_port":     5432,
				"dwh_user":     "metricsuser",
				"dwh_database": "metrics",
				"dwh_schema":   "mf_demo",
				"model_path":   "./models",
			},
		},
		{
			name:      "malformed yaml leaves no file",
			value:     Text("root:\nbreaking_node"),
			path:      "cfg.yaml",
			wantErrIs: ErrConfigParse,
			wantMsg:   "Error while parsing provided MetricFlow config string",
		},
		{
			name:      "malformed yaml leaves the prior file unchanged",
			existing:  "kept: yes\n",
			value:     Text("root:\nbreaking_node"),
			path:      "mf_config_dir/config.yaml",
			wantErrIs: ErrConfigParse,
		},
		{
			name:      "zero value is rejected",
			value:     Value{},
			path:      "cfg.yaml",
			wantErrIs: ErrUnsupportedValue,
		},
		{
			name:      "unserializable mapping",
			value:     Structured(map[string]any{"f": func() {}}),
			path:      "cfg.yaml",
			wantErrIs: ErrFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			if tt.existing != "" {
				if err := afero.WriteFile(fsys, tt.path, []byte(tt.existing), 0o600); err != nil {
					t.Fatalf("seed: %v", err)
				}
			}

			err := NewPersister(fsys).Persist(tt.value, tt.path)

			if tt.wantErrIs != nil {
				if !errors.Is(err, tt.wantErrIs) {
					t.Fatalf("errors.Is(err, %v) = false; err = %v", tt.wantErrIs, err)
				}
				if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
					t.Fatalf("error %q does not contain %q", err.Error(), tt.wantMsg)
				}
				if tt.existing == "" {
					if ok, _ := afero.Exists(fsys, tt.path); ok {
						t.Fatalf("file %s must not exist after a failed persist", tt.path)
					}
					return
				}
				b, rerr := afero.ReadFile(fsys, tt.path)
				if rerr != nil || string(b) != tt.existing {
					t.Fatalf("prior file changed: %q (%v)", b, rerr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := readYAML(t, fsys, tt.path); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("persisted = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestPersister_RoundTrip(t *testing.T) {
	values := []map[string]any{
		{},
		{"a": "b"},
		{"root": map[string]any{"leaf": "foo"}},
		{
			"dwh_dialect": "snowflake",
			"dwh_port":    443,
			"enabled":     false,
			"ratio":       0.25,
			"schemas":     []any{"raw", "marts"},
			"nested":      map[string]any{"deeper": map[string]any{"list": []any{1, 2, 3}}},
			"empty":       nil,
		},
	}

	for i, v := range values {
		fsys := afero.NewMemMapFs()
		p := NewPersister(fsys)
		if err := p.Persist(Structured(v), "config.yml"); err != nil {
			t.Fatalf("[%d] persist: %v", i, err)
		}
		got, err := p.Load("config.yml")
		if err != nil {
			t.Fatalf("[%d] load: %v", i, err)
		}
		if !reflect.DeepEqual(got, v) {
			t.Fatalf("[%d] round trip = %#v, want %#v", i, got, v)
		}

		// Text describing the same mapping yields the same file.
		data, err := Marshal(v)
		if err != nil {
			t.Fatalf("[%d] marshal: %v", i, err)
		}
		if err := p.Persist(Text(string(data)), "again.yml"); err != nil {
			t.Fatalf("[%d] persist text: %v", i, err)
		}
		again, _ := afero.ReadFile(fsys, "again.yml")
		if !bytes.Equal(again, data) {
			t.Fatalf("[%d] text persist = %q, want %q", i, again, data)
		}
	}
}

func TestMarshal_Canonical(t *testing.T) {
	got, err := Marshal(map[string]any{
		"zeta":  1,
		"alpha": map[string]any{"b": "second", "a": "first"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "alpha:\n  a: first\n  b: second\nzeta: 1\n"
	if string(got) != want {
		t.Fatalf("Marshal() = %q, want %q", got, want)
	}
}

func TestPersister_OsFilesystem(t *testing.T) {
	td := t.TempDir()

	tests := []struct {
		name          string
		path          func(t *testing.T) string
		wantErrIs     error
		wantErrSubstr string
		verify        func(t *testing.T, p string)
	}{
		{
			name: "success",
			path: func(t *testing.T) string { return filepath.Join(td, "config.yml") },
			verify: func(t *testing.T, p string) {
				got := readYAML(t, afero.NewOsFs(), p)
				if !reflect.DeepEqual(got, map[string]any{"root": map[string]any{"leaf": "foo"}}) {
					t.Fatalf("unexpected content: %#v", got)
				}
				entries, err := os.ReadDir(filepath.Dir(p))
				if err != nil {
					t.Fatalf("readdir: %v", err)
				}
				for _, e := range entries {
					if strings.HasPrefix(e.Name(), "temp-config-") {
						t.Fatalf("temp file left behind: %s", e.Name())
					}
				}
			},
		},
		{
			name: "symlinked destination is written through",
			path: func(t *testing.T) string {
				target := filepath.Join(td, "real.yml")
				if err := os.WriteFile(target, []byte("old: 1\n"), 0o644); err != nil {
					t.Fatalf("write: %v", err)
				}
				link := filepath.Join(td, "link.yml")
				if err := os.Symlink("real.yml", link); err != nil {
					t.Skipf("symlinks unsupported: %v", err)
				}
				return link
			},
			verify: func(t *testing.T, p string) {
				info, err := os.Lstat(p)
				if err != nil {
					t.Fatalf("lstat: %v", err)
				}
				if info.Mode()&os.ModeSymlink == 0 {
					t.Fatalf("%s must still be a symlink, mode = %v", p, info.Mode())
				}
				got := readYAML(t, afero.NewOsFs(), filepath.Join(td, "real.yml"))
				if !reflect.DeepEqual(got, map[string]any{"root": map[string]any{"leaf": "foo"}}) {
					t.Fatalf("link target not updated: %#v", got)
				}
			},
		},
		{
			name: "existing file mode is kept",
			path: func(t *testing.T) string {
				p := filepath.Join(td, "shared.yml")
				if err := os.WriteFile(p, []byte("old: 1\n"), 0o644); err != nil {
					t.Fatalf("write: %v", err)
				}
				if err := os.Chmod(p, 0o644); err != nil {
					t.Fatalf("chmod: %v", err)
				}
				return p
			},
			verify: func(t *testing.T, p string) {
				info, err := os.Stat(p)
				if err != nil {
					t.Fatalf("stat: %v", err)
				}
				if got := info.Mode().Perm(); got != 0o644 {
					t.Fatalf("mode = %v, want %v", got, os.FileMode(0o644))
				}
			},
		},
		{
			name: "new file is private",
			path: func(t *testing.T) string { return filepath.Join(td, "fresh.yml") },
			verify: func(t *testing.T, p string) {
				info, err := os.Stat(p)
				if err != nil {
					t.Fatalf("stat: %v", err)
				}
				if got := info.Mode().Perm(); got != 0o600 {
					t.Fatalf("mode = %v, want %v", got, os.FileMode(0o600))
				}
			},
		},
		{
			name: "parent dir does not exist",
			path: func(t *testing.T) string {
				return filepath.Join(td, "no_such_dir", "config.yml")
			},
			wantErrIs:     fs.ErrNotExist,
			wantErrSubstr: "create temp file",
			verify: func(t *testing.T, p string) {
				if _, err := os.Stat(filepath.Dir(p)); !errors.Is(err, fs.ErrNotExist) {
					t.Fatalf("parent dir must not be created, stat err = %v", err)
				}
			},
		},
		{
			name: "destination is a directory",
			path: func(t *testing.T) string {
				dir := filepath.Join(td, "destdir")
				if err := os.Mkdir(dir, 0o755); err != nil {
					t.Fatalf("mkdir: %v", err)
				}
				return dir
			},
			wantErrIs:     ErrWrite,
			wantErrSubstr: "rename temp file",
			verify: func(t *testing.T, p string) {
				info, err := os.Stat(p)
				if err != nil {
					t.Fatalf("stat: %v", err)
				}
				if !info.IsDir() {
					t.Fatalf("expected a directory to remain at %s", p)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.path(t)
			err := Persist(Text("root:\n  leaf: foo\n"), p)

			if tt.wantErrIs != nil && !errors.Is(err, tt.wantErrIs) {
				t.Fatalf("errors.Is(err, %v) = false; err = %v", tt.wantErrIs, err)
			}
			if tt.wantErrSubstr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErrSubstr)) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErrSubstr, err)
			}
			if tt.wantErrIs == nil && tt.wantErrSubstr == "" && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.verify != nil {
				tt.verify(t, p)
			}
		})
	}
}

func TestPersister_Notice(t *testing.T) {
	s := streams.Buffers()
	p := NewPersister(afero.NewMemMapFs(), WithPersisterStreams(s))

	if err := p.Persist(Structured(map[string]any{"a": 1}), "config.yml"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := s.Strings(); !strings.Contains(got, "persisted config to config.yml") {
		t.Fatalf("Out = %q", got)
	}

	s.Reset()
	_ = p.Persist(Text("root:\nbreaking_node"), "config.yml")
	if got, _ := s.Strings(); got != "" {
		t.Fatalf("no notice expected on failure, got %q", got)
	}
}

func TestPersister_Load(t *testing.T) {
	fsys := afero.NewMemMapFs()
	p := NewPersister(fsys)

	if _, err := p.Load("missing.yml"); !errors.Is(err, ErrRead) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("missing file: err = %v", err)
	}

	if err := afero.WriteFile(fsys, "bad.yml", []byte("a: [unclosed\n"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := p.Load("bad.yml"); !errors.Is(err, ErrRead) {
		t.Fatalf("bad file: err = %v", err)
	}

	if err := afero.WriteFile(fsys, "empty.yml", nil, 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := p.Load("empty.yml")
	if err != nil || len(got) != 0 || got == nil {
		t.Fatalf("empty file: got %#v, err %v", got, err)
	}
}
