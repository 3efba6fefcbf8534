// Package mfcli implements client.Client on top of the MetricFlow command line
// tool. Each call runs `mf` with MF_CONFIG_DIR pointing at the directory of
// the resolved config file. mf only reads config.yml from that directory, so a
// config stored under another name is linked as config.yml into a temporary
// directory for the duration of the call.
package mfcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/ygrebnov/mftasks/client"
	"github.com/ygrebnov/mftasks/mfconfig"
)

// DefaultCommand is the MetricFlow executable looked up in PATH.
const DefaultCommand = "mf"

var (
	// ErrStageConfig is returned when a config not named config.yml cannot
	// be exposed to mf under that name.
	ErrStageConfig = errors.New("cannot stage mf config dir")
	// ErrCommandFailed wraps a non-zero exit of the mf command.
	ErrCommandFailed = errors.New("mf command failed")
	// ErrUnparsableOutput is returned when mf succeeded but its output does
	// not name the created table.
	ErrUnparsableOutput = errors.New("cannot parse mf output")
	// ErrEmptyCommand is returned when the command string splits to nothing.
	ErrEmptyCommand = errors.New("empty mf command")
)

// RunFunc runs name with args and extra environment entries and returns its
// stdout and stderr.
type RunFunc func(ctx context.Context, name string, args, env []string) (stdout, stderr []byte, err error)

// Client runs mf subcommands against one config directory.
type Client struct {
	command   []string
	configPath string
	timeout   time.Duration
	run       RunFunc
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithCommand sets the mf invocation as a shell-like string, e.g.
// "poetry run mf".
func WithCommand(command string) Option {
	return func(c *Client) error {
		parts, err := shlex.Split(command)
		if err != nil {
			return fmt.Errorf("failed to parse command %q: %w", command, err)
		}
		if len(parts) == 0 {
			return ErrEmptyCommand
		}
		c.command = parts
		return nil
	}
}

// WithTimeout bounds every mf invocation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.timeout = d
		return nil
	}
}

// WithRunFunc replaces process execution.
func WithRunFunc(fn RunFunc) Option {
	return func(c *Client) error {
		if fn == nil {
			return errors.New("mfcli: WithRunFunc: fn cannot be nil")
		}
		c.run = fn
		return nil
	}
}

// WithLogger sets the logger used for command tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) error {
		if l != nil {
			c.logger = l
		}
		return nil
	}
}

// New returns a Client configured from the file at configPath.
func New(configPath string, opts ...Option) (*Client, error) {
	c := &Client{
		command:    []string{DefaultCommand},
		configPath: configPath,
		run:        execRun,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NewFactory returns a client.Factory building Clients with opts.
func NewFactory(opts ...Option) client.Factory {
	return func(_ context.Context, configPath string) (client.Client, error) {
		return New(configPath, opts...)
	}
}

// Materialize runs `mf materialize` and returns the table it reports.
func (c *Client) Materialize(ctx context.Context, req client.MaterializeRequest) (client.SQLTable, error) {
	args := []string{"materialize", "--materialization-name", req.MaterializationName}
	if req.StartTime != "" {
		args = append(args, "--start-time", req.StartTime)
	}
	if req.EndTime != "" {
		args = append(args, "--end-time", req.EndTime)
	}
	out, err := c.exec(ctx, args)
	if err != nil {
		return client.SQLTable{}, err
	}
	return parseMaterializeOutput(out)
}

// DropMaterialization runs `mf drop-materialization`.
func (c *Client) DropMaterialization(ctx context.Context, materializationName string) (bool, error) {
	out, err := c.exec(ctx, []string{"drop-materialization", "--materialization-name", materializationName})
	if err != nil {
		return false, err
	}
	return parseDropOutput(out), nil
}

func (c *Client) exec(ctx context.Context, args []string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	configDir, cleanup, err := c.stageConfigDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	argv := append(append([]string{}, c.command[1:]...), args...)
	env := []string{mfconfig.DirEnvVar + "=" + configDir}

	c.logger.Debug("running mf", "command", c.command[0], "args", argv, "config_dir", configDir)
	stdout, stderr, err := c.run(ctx, c.command[0], argv, env)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = strings.TrimSpace(string(stdout))
		}
		return nil, fmt.Errorf("%w: %s %s: %w: %s", ErrCommandFailed, c.command[0], args[0], err, msg)
	}
	return stdout, nil
}

// stageConfigDir returns the directory to expose as MF_CONFIG_DIR. A config
// named config.yml is used in place; any other name gets a temporary directory
// holding a config.yml symlink, or a copy where symlinks are unavailable.
func (c *Client) stageConfigDir() (string, func(), error) {
	if filepath.Base(c.configPath) == mfconfig.FileName {
		return filepath.Dir(c.configPath), func() {}, nil
	}
	abs, err := filepath.Abs(c.configPath)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %w", ErrStageConfig, c.configPath, err)
	}
	dir, err := os.MkdirTemp("", "mftasks-mf-config-*")
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %w", ErrStageConfig, c.configPath, err)
	}
	cleanup := func() { os.RemoveAll(dir) } //nolint:errcheck // best effort

	staged := filepath.Join(dir, mfconfig.FileName)
	if err := os.Symlink(abs, staged); err != nil {
		data, rerr := os.ReadFile(abs)
		if rerr == nil {
			rerr = os.WriteFile(staged, data, 0o600)
		}
		if rerr != nil {
			cleanup()
			return "", nil, fmt.Errorf("%w: %s: %w", ErrStageConfig, c.configPath, rerr)
		}
	}
	c.logger.Debug("staged mf config", "config_path", c.configPath, "config_dir", dir)
	return dir, cleanup, nil
}

var quotedTable = regexp.MustCompile("`([A-Za-z0-9_$]+(?:\\.[A-Za-z0-9_$]+){1,2})`")

// parseMaterializeOutput picks the last back-quoted dotted identifier, which
// is how mf reports the created table.
func parseMaterializeOutput(out []byte) (client.SQLTable, error) {
	matches := quotedTable.FindAllSubmatch(out, -1)
	if len(matches) == 0 {
		return client.SQLTable{}, fmt.Errorf("%w: no table in %q", ErrUnparsableOutput, strings.TrimSpace(string(out)))
	}
	return client.ParseSQLTable(string(matches[len(matches)-1][1]))
}

func parseDropOutput(out []byte) bool {
	return !strings.Contains(strings.ToLower(string(out)), "does not exist")
}

func execRun(ctx context.Context, name string, args, env []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
