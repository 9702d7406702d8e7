package cli

import (
	"context"

	"bootkit/internal/logging"

	"github.com/urfave/cli/v3"
)

// NewApp assembles the bootkit command tree.
func NewApp() *cli.Command {
	commands := []*cli.Command{
		ConfigCommand(),
		ScriptCommand(),
		RenderCommand(),
	}
	commands = append(commands, GetRootCommands()...)

	return &cli.Command{
		Name:  "bootkit",
		Usage: "Render instance init scripts and wait for instances to come up",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log verbosity: trace, debug, info, warn, error",
				Sources: cli.EnvVars(logging.EnvLogLevel),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logging.SetupLogger(cmd.String("log-level"))
			return ctx, nil
		},
		Commands: commands,
	}
}
