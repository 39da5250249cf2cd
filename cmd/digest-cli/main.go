package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/dig"

	"github.com/mikey/digest-relay/internal/di"
)

var flags = &di.CLIFlags{}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "digest-cli",
		Usage: "Operator tool for the Kwork digest relay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				Destination: &flags.ConfigFile,
			},
			&cli.StringFlag{
				Name:        "state-file",
				Usage:       "Use this cursor file instead of the configured state store",
				Destination: &flags.StateFile,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Aliases:     []string{"v"},
				Usage:       "Enable verbose logging",
				Destination: &flags.Verbose,
			},
			&cli.BoolFlag{
				Name:        "json-log",
				Usage:       "Output logs in JSON format",
				Destination: &flags.JSONLog,
			},
		},
		Commands: []*cli.Command{
			parseCommand,
			checkCommand,
			forceCommand,
			resetCommand,
			statusCommand,
		},
	}
}

// invoke builds the CLI container and runs fn with its dependencies
func invoke(fn any) error {
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}
	if err := container.Invoke(fn); err != nil {
		return dig.RootCause(err)
	}
	return nil
}
