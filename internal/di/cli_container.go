package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/digest-relay/internal/config"
	"github.com/mikey/digest-relay/internal/logging"
)

// CLIFlags contains the global command line flags of the CLI
type CLIFlags struct {
	ConfigFile string
	StateFile  string
	Verbose    bool
	JSONLog    bool
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application.
// Credentials are not validated here so that offline commands work without them.
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		var cfg *config.Config
		var err error
		if flags.ConfigFile != "" {
			cfg, err = config.NewFromFile(flags.ConfigFile)
		} else {
			cfg, err = config.New()
		}
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Info("Loaded configuration from file", zap.String("file", used))
		}

		if flags.StateFile != "" {
			cfg.Set("state.type", "file")
			cfg.Set("state.file", flags.StateFile)
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := provideRelay(container); err != nil {
		return nil, err
	}

	return container, nil
}
