package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ygrebnov/mftasks"
	"github.com/ygrebnov/mftasks/client"
	"github.com/ygrebnov/mftasks/client/mfcli"
	"github.com/ygrebnov/mftasks/internal/logging"
	"github.com/ygrebnov/mftasks/internal/settings"
	"github.com/ygrebnov/mftasks/mfconfig"
	"github.com/ygrebnov/mftasks/streams"
)

// app holds the collaborators shared by all subcommands. Tests replace the
// factory, filesystem and environment lookup.
type app struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	fs         afero.Fs
	lookupEnv  func(string) (string, bool)
	newFactory func(s *settings.Settings, logger *slog.Logger) client.Factory

	settings *settings.Settings
	logger   *slog.Logger
	runner   *mftasks.Runner
}

func newApp() *app {
	return &app{
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		fs:        afero.NewOsFs(),
		lookupEnv: os.LookupEnv,
		newFactory: func(s *settings.Settings, logger *slog.Logger) client.Factory {
			return mfcli.NewFactory(
				mfcli.WithCommand(s.MFCommand),
				mfcli.WithTimeout(s.Timeout),
				mfcli.WithLogger(logger),
			)
		},
	}
}

// setup loads the env file and settings, then builds the logger and runner.
func (a *app) setup(cmd *cobra.Command) error {
	if err := loadEnvFile(cmd); err != nil {
		return err
	}

	s, settingsPath, err := settings.New(settings.WithLookupEnv(a.lookupEnv)).Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := applyFlagOverrides(cmd, s); err != nil {
		return err
	}
	a.settings = s

	a.logger = logging.New(s.LogLevel, s.LogFormat, a.stderr)
	if settingsPath != "" {
		a.logger.Debug("settings loaded", "path", settingsPath)
	}

	ios := streams.Slog(a.logger, slog.LevelInfo, slog.LevelWarn)
	handler := mfconfig.NewHandler(
		mfconfig.WithLookupEnv(a.lookupEnv),
		mfconfig.WithHandlerStreams(ios),
	)
	a.runner = mftasks.New(
		a.newFactory(s, a.logger),
		mftasks.WithFs(a.fs),
		mftasks.WithDefaultPath(handler.FilePath),
		mftasks.WithLogger(a.logger),
		mftasks.WithStreams(ios),
	)
	return nil
}

func applyFlagOverrides(cmd *cobra.Command, s *settings.Settings) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("log-level") {
		if s.LogLevel, err = flags.GetString("log-level"); err != nil {
			return err
		}
	}
	if flags.Changed("log-format") {
		if s.LogFormat, err = flags.GetString("log-format"); err != nil {
			return err
		}
	}
	if flags.Changed("mf-command") {
		if s.MFCommand, err = flags.GetString("mf-command"); err != nil {
			return err
		}
	}
	if flags.Changed("timeout") {
		if s.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	return nil
}

// loadEnvFile loads variables from --env-file without overriding ones already
// set. A missing file is ignored.
func loadEnvFile(cmd *cobra.Command) error {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile == "" {
		return nil
	}
	absPath, err := filepath.Abs(envFile)
	if err != nil {
		return fmt.Errorf("failed to resolve env file path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("env file path '%s' is not a regular file", envFile)
	}
	if err := godotenv.Load(absPath); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", absPath, err)
	}
	return nil
}

// configValue builds the config value from --config / --config-file.
// "-" as config file reads stdin.
func (a *app) configValue(cmd *cobra.Command) (mfconfig.Value, error) {
	inline, _ := cmd.Flags().GetString("config")
	file, _ := cmd.Flags().GetString("config-file")

	switch {
	case inline != "" && file != "":
		return mfconfig.Value{}, fmt.Errorf("--config and --config-file are mutually exclusive")
	case inline != "":
		return mfconfig.Text(inline), nil
	case file == "-":
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return mfconfig.Value{}, fmt.Errorf("failed to read config from stdin: %w", err)
		}
		return mfconfig.Text(string(data)), nil
	case file != "":
		data, err := afero.ReadFile(a.fs, file)
		if err != nil {
			return mfconfig.Value{}, fmt.Errorf("failed to read config file: %w", err)
		}
		return mfconfig.Text(string(data)), nil
	default:
		return mfconfig.Value{}, nil
	}
}
