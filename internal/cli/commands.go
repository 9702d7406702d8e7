package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"

	"bootkit/internal/config"
	"bootkit/internal/scriptbuilder"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func openConfig() (*config.Loader, *config.AppConfig, error) {
	loader, err := config.NewLoader()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return loader, cfg, nil
}

// ConfigCommand returns the CLI command for managing configuration.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Display current configuration",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					loader, cfg, err := openConfig()
					if err != nil {
						return err
					}

					fmt.Printf("Config File: %s\n", loader.GetConfigPath())
					fmt.Printf("Current Profile: %s\n", cfg.CurrentProfile)
					fmt.Println("---")

					data, err := yaml.Marshal(cfg)
					if err != nil {
						return fmt.Errorf("failed to encode config: %w", err)
					}
					fmt.Println(string(data))
					return nil
				},
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List all profiles",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					_, cfg, err := openConfig()
					if err != nil {
						return err
					}

					names := make([]string, 0, len(cfg.Profiles))
					for name := range cfg.Profiles {
						names = append(names, name)
					}
					slices.Sort(names)

					for _, name := range names {
						prefix := " "
						if name == cfg.CurrentProfile {
							prefix = "*"
						}
						fmt.Printf("%s %s (%s)\n", prefix, name, cfg.Profiles[name].Provider)
					}
					return nil
				},
			},
			{
				Name:      "use",
				Usage:     "Switch current profile",
				ArgsUsage: "<profile-name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name := cmd.Args().First()
					if name == "" {
						return fmt.Errorf("profile name required")
					}

					loader, cfg, err := openConfig()
					if err != nil {
						return err
					}
					if _, ok := cfg.Profiles[name]; !ok {
						return fmt.Errorf("profile '%s' does not exist", name)
					}

					cfg.CurrentProfile = name
					if err := loader.Save(cfg); err != nil {
						return err
					}
					fmt.Printf("Switched to profile '%s'\n", name)
					return nil
				},
			},
			{
				Name:      "new",
				Usage:     "Create a new profile from defaults",
				ArgsUsage: "<profile-name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "provider", Value: "aws", Usage: "Backend: aws or proxmox"},
					&cli.StringFlag{Name: "os", Value: "unix", Usage: "OS family scripts render for"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name := cmd.Args().First()
					if name == "" {
						return fmt.Errorf("profile name required")
					}
					family, err := scriptbuilder.ParseOsFamily(cmd.String("os"))
					if err != nil {
						return err
					}

					loader, cfg, err := openConfig()
					if err != nil {
						return err
					}
					if _, ok := cfg.Profiles[name]; ok {
						return fmt.Errorf("profile '%s' already exists", name)
					}

					profile := config.DefaultProfile()
					profile.Provider = cmd.String("provider")
					profile.OsFamily = family.String()
					cfg.Profiles[name] = profile

					// First profile becomes current.
					if cfg.CurrentProfile == "" {
						cfg.CurrentProfile = name
					}

					if err := loader.Save(cfg); err != nil {
						return err
					}
					fmt.Printf("Created profile '%s'\n", name)
					return nil
				},
			},
			{
				Name:  "edit",
				Usage: "Open config file in editor",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					loader, cfg, err := openConfig()
					if err != nil {
						return err
					}

					path := loader.GetConfigPath()
					if _, err := os.Stat(path); os.IsNotExist(err) {
						if err := loader.Save(cfg); err != nil {
							return err
						}
					}

					editor := os.Getenv("EDITOR")
					if editor == "" {
						editor = "vi"
					}

					c := exec.CommandContext(ctx, editor, path)
					c.Stdin = os.Stdin
					c.Stdout = os.Stdout
					c.Stderr = os.Stderr
					return c.Run()
				},
			},
		},
	}
}
