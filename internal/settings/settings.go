// Package settings loads the mftasks command's own settings.
//
// Settings are built in this order:
//  1. Factory defaults, then model `default` tags for zero fields.
//  2. The YAML file named by ${PREFIX}_CONFIG_PATH, when set and present.
//  3. Environment overrides ${PREFIX}_<FIELD> (`env` tag or SCREAMING_SNAKE name).
//  4. Validation through model `validate` tags.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"time"

	modellib "github.com/ygrebnov/model"
	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix prefixes every environment variable read by Load.
const DefaultEnvPrefix = "MFTASKS"

// Exported error categories.
//   - ErrUnsupportedFileType: the settings file is not .yaml/.yml.
//   - ErrParse: the settings file is not valid YAML.
var (
	ErrUnsupportedFileType = errors.New("unsupported settings file type")
	ErrParse               = errors.New("parse settings file")
)

// Settings configures the mftasks command.
type Settings struct {
	LogLevel  string        `yaml:"log_level" env:"LOG_LEVEL" default:"info" validate:"nonempty"`
	LogFormat string        `yaml:"log_format" env:"LOG_FORMAT" default:"text" validate:"nonempty"`
	MFCommand string        `yaml:"mf_command" env:"MF_COMMAND" default:"mf" validate:"nonempty"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// Loader builds Settings.
type Loader struct {
	envPrefix string
	lookupEnv func(string) (string, bool)
	defaultFn func() *Settings
}

// Option configures a Loader.
type Option func(*Loader)

// New constructs a Loader with the MFTASKS prefix and the process environment.
func New(opts ...Option) *Loader {
	l := &Loader{
		envPrefix: DefaultEnvPrefix,
		lookupEnv: os.LookupEnv,
		defaultFn: func() *Settings { return &Settings{} },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithEnvPrefix sets the environment prefix. Panics if prefix is empty.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		if prefix == "" {
			panic("settings: WithEnvPrefix: prefix cannot be empty")
		}
		l.envPrefix = prefix
	}
}

// WithLookupEnv replaces os.LookupEnv. Panics if fn is nil.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(l *Loader) {
		if fn == nil {
			panic("settings: WithLookupEnv: fn cannot be nil")
		}
		l.lookupEnv = fn
	}
}

// WithDefaultFn registers the factory for the base Settings. Non-zero fields
// it sets win over `default` tags. Panics if fn is nil.
func WithDefaultFn(fn func() *Settings) Option {
	return func(l *Loader) {
		if fn == nil {
			panic("settings: WithDefaultFn: fn cannot be nil")
		}
		l.defaultFn = fn
	}
}

// Load builds Settings and returns them with the settings file path, empty
// when no file was configured.
func (l *Loader) Load() (*Settings, string, error) {
	s := l.defaultFn()

	mdl, err := modellib.New(
		s,
		modellib.WithRules[Settings, string](modellib.BuiltinStringRules()),
	)
	if err != nil {
		return nil, "", err
	}
	if err := mdl.SetDefaults(); err != nil {
		return nil, "", err
	}

	path, _ := l.lookupEnv(l.envPrefix + "_CONFIG_PATH")
	if err := loadFromFile(path, s); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", err
	}

	applyEnv(reflect.ValueOf(s).Elem(), l.envPrefix, nil, l.lookupEnv)

	if err := mdl.Validate(); err != nil {
		return nil, "", err
	}
	return s, path, nil
}

// Load builds Settings from the process environment with the MFTASKS prefix.
func Load() (*Settings, string, error) {
	return New().Load()
}

func loadFromFile(path string, s *Settings) error {
	if path == "" {
		return nil
	}
	ext := filepath.Ext(path)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("%w %s: %w", ErrParse, path, err)
	}
	return nil
}
