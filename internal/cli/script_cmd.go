package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"bootkit/internal/config"
	"bootkit/internal/scriptbuilder"
	"bootkit/internal/userdata"

	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
)

var osFlag = &cli.StringFlag{Name: "os", Usage: "Target OS family: unix or windows (default: document, then profile, then unix)"}

// RenderCommand renders a script document to an init script.
func RenderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render a script document into an init script",
		ArgsUsage: "<file|stored-name>",
		Flags: []cli.Flag{
			osFlag,
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file or directory (default: stdout)"},
			&cli.BoolFlag{Name: "user-data", Usage: "Wrap the script in a boot-time launcher that runs init and start"},
			profileFlag,
		},
		Action: renderScript,
	}
}

// ScriptCommand manages stored script documents.
func ScriptCommand() *cli.Command {
	return &cli.Command{
		Name:    "script",
		Aliases: []string{"userdata"},
		Usage:   "Manage stored script documents",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Store a script document (YAML or TOML)",
				ArgsUsage: "<name> [file_path]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: "yaml", Usage: "Format of stdin input: yaml or toml"},
				},
				Action: createScript,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List stored script documents",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					m, err := userdata.NewManager()
					if err != nil {
						return err
					}
					list, err := m.List()
					if err != nil {
						return err
					}
					if len(list) == 0 {
						fmt.Println("No scripts found.")
						return nil
					}

					table := tablewriter.NewWriter(os.Stdout)
					table.SetHeader([]string{"NAME", "FORMAT", "SCRIPT", "STATEMENTS"})
					table.SetBorder(false)
					table.SetAutoWrapText(false)
					for _, e := range list {
						doc, err := m.Load(e.Name)
						if err != nil {
							table.Append([]string{e.Name, string(e.Format), "", "Error: " + err.Error()})
							continue
						}
						table.Append([]string{e.Name, string(e.Format), doc.Name, fmt.Sprint(len(doc.Statements))})
					}
					table.Render()
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "Print a stored script document",
				ArgsUsage: "[name]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					m, err := userdata.NewManager()
					if err != nil {
						return err
					}
					name, err := selectScript(m, cmd.Args().First())
					if err != nil {
						return err
					}
					content, _, err := m.Get(name)
					if err != nil {
						return err
					}
					_, err = os.Stdout.Write(content)
					return err
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a stored script document",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name := cmd.Args().First()
					if name == "" {
						return fmt.Errorf("name is required")
					}
					m, err := userdata.NewManager()
					if err != nil {
						return err
					}
					if err := m.Delete(name); err != nil {
						return err
					}
					fmt.Printf("Script '%s' deleted.\n", name)
					return nil
				},
			},
		},
	}
}

func createScript(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().Get(0)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	filePath := cmd.Args().Get(1)

	var (
		content []byte
		format  userdata.Format
		err     error
	)
	if filePath != "" {
		if format, err = userdata.FormatFromPath(filePath); err != nil {
			return err
		}
		if content, err = os.ReadFile(filePath); err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
	} else {
		if format, err = userdata.FormatFromPath("stdin." + cmd.String("format")); err != nil {
			return err
		}
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			return fmt.Errorf("no file path provided and stdin is empty")
		}
		if content, err = io.ReadAll(os.Stdin); err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	}

	if len(content) == 0 {
		return fmt.Errorf("content is empty")
	}

	m, err := userdata.NewManager()
	if err != nil {
		return err
	}
	if err := m.Create(name, format, content); err != nil {
		return err
	}

	fmt.Printf("Script '%s' created.\n", name)
	return nil
}

func renderScript(ctx context.Context, cmd *cli.Command) error {
	m, err := userdata.NewManager()
	if err != nil {
		return err
	}
	ref, err := selectScript(m, cmd.Args().First())
	if err != nil {
		return err
	}
	doc, err := m.Resolve(ref)
	if err != nil {
		return err
	}

	family, err := resolveFamily(cmd.String("os"), doc, profileFamily(cmd))
	if err != nil {
		return err
	}

	render := scriptbuilder.Render
	if cmd.Bool("user-data") {
		render = scriptbuilder.UserData
	}
	script, err := render(doc.ToSpec(), family)
	if err != nil {
		return err
	}

	out := cmd.String("out")
	if out == "" || out == "-" {
		_, err := io.WriteString(os.Stdout, script)
		return err
	}

	path, err := outputPath(out, doc.Name, family)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}
	slog.Info("rendered init script", "script", doc.Name, "os", family, "path", path)
	return nil
}

// profileFamily returns the OS family of the selected profile, or "" when
// no profile is configured. Rendering works without one.
func profileFamily(cmd *cli.Command) string {
	loader, err := config.NewLoader()
	if err != nil {
		return ""
	}
	appCfg, err := loader.Load()
	if err != nil {
		return ""
	}
	profile, _, err := appCfg.Profile(cmd.String("profile"))
	if err != nil {
		return ""
	}
	return profile.OsFamily
}

// resolveFamily picks the target OS: an explicit flag wins over the
// document, which wins over the profile. UNIX is the fallback.
func resolveFamily(flag string, doc *userdata.Document, profile string) (scriptbuilder.OsFamily, error) {
	if flag != "" {
		return scriptbuilder.ParseOsFamily(flag)
	}
	fallback := scriptbuilder.Unix
	if profile != "" {
		f, err := scriptbuilder.ParseOsFamily(profile)
		if err != nil {
			return 0, fmt.Errorf("profile os_family: %w", err)
		}
		fallback = f
	}
	if doc == nil {
		return fallback, nil
	}
	return doc.Family(fallback)
}

// outputPath writes into out, or into out/<name>.<sh|cmd> when out is an
// existing directory.
func outputPath(out, name string, family scriptbuilder.OsFamily) (string, error) {
	info, err := os.Stat(out)
	if err != nil || !info.IsDir() {
		return out, nil
	}
	file, err := scriptbuilder.FileName(name, family)
	if err != nil {
		return "", err
	}
	return filepath.Join(out, file), nil
}

// selectScript returns name, or prompts for one of the stored documents.
func selectScript(m *userdata.Manager, name string) (string, error) {
	if name != "" {
		return name, nil
	}

	candidates, err := m.Names()
	if err != nil {
		return "", err
	}
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("no stored scripts found; run 'bootkit script create <name> <file>'")
	case 1:
		fmt.Printf("Selected '%s'\n", candidates[0])
		return candidates[0], nil
	}

	prompt := promptui.Select{
		Label: "Select script",
		Items: candidates,
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(candidates[index]), strings.ToLower(input))
		},
		StartInSearchMode: true,
	}
	_, result, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return result, nil
}
