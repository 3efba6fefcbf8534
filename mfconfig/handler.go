package mfconfig

import (
	"os"
	"path/filepath"

	"github.com/ygrebnov/mftasks/streams"
)

const (
	// DirEnvVar names the environment variable holding the MetricFlow config directory.
	DirEnvVar = "MF_CONFIG_DIR"
	// DefaultDirName is the config directory created under the user's home.
	DefaultDirName = ".metricflow"
	// FileName is the name of the config file inside the config directory.
	FileName = "config.yml"
)

// Handler locates the default MetricFlow config file. It follows the
// MetricFlow rule: ${MF_CONFIG_DIR}/config.yml when the variable is set,
// $HOME/.metricflow/config.yml otherwise.
//
// Lookups happen on every call; nothing is cached.
type Handler struct {
	lookupEnv func(string) (string, bool)
	homeDir   func() (string, error)
	streams   streams.Streams
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// NewHandler constructs a Handler reading the process environment and the
// OS home directory unless overridden by options.
func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		lookupEnv: os.LookupEnv,
		homeDir:   os.UserHomeDir,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithLookupEnv replaces os.LookupEnv. Panics if fn is nil.
func WithLookupEnv(fn func(string) (string, bool)) HandlerOption {
	return func(h *Handler) {
		if fn == nil {
			panic("mfconfig: WithLookupEnv: fn cannot be nil")
		}
		h.lookupEnv = fn
	}
}

// WithHomeDir replaces os.UserHomeDir. Panics if fn is nil.
func WithHomeDir(fn func() (string, error)) HandlerOption {
	return func(h *Handler) {
		if fn == nil {
			panic("mfconfig: WithHomeDir: fn cannot be nil")
		}
		h.homeDir = fn
	}
}

// WithHandlerStreams routes warnings (e.g. an unknown home directory) to s.
func WithHandlerStreams(s streams.Streams) HandlerOption {
	return func(h *Handler) {
		h.streams = s
	}
}

// DirPath returns the MetricFlow config directory.
func (h *Handler) DirPath() string {
	if dir, ok := h.lookupEnv(DirEnvVar); ok && dir != "" {
		return dir
	}
	home, err := h.homeDir()
	if err != nil || home == "" {
		streams.Warnf(
			h.streams,
			"mfconfig: warning: cannot determine home dir (%v); using %s relative to the working dir\n",
			err, DefaultDirName,
		)
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// FilePath returns the default MetricFlow config file path. It has the
// DefaultPathFunc signature and can be passed to Resolve directly.
func (h *Handler) FilePath() string {
	return filepath.Join(h.DirPath(), FileName)
}
