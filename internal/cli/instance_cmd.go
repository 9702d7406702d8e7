package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"

	"bootkit/internal/config"
	"bootkit/internal/orchestration"
	"bootkit/internal/providers"
	"bootkit/internal/retry"
	"bootkit/internal/userdata"

	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
)

var timeoutFlag = &cli.DurationFlag{Name: "timeout", Usage: "Give up waiting after this long (default: profile wait.timeout)"}

// GetRootCommands returns the root-level CLI commands for managing instances.
func GetRootCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "launch",
			Usage:     "Create an instance and wait until it is running",
			ArgsUsage: "<name>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "script", Usage: "Script document: file path or stored name (default: profile script)"},
				&cli.StringFlag{Name: "type", Usage: "Instance type (e.g. t3.small)"},
				osFlag,
				timeoutFlag,
				profileFlag,
			},
			Action: launchInstance,
		},
		{
			Name:      "destroy",
			Usage:     "Destroy an instance",
			ArgsUsage: "<name>",
			Flags:     []cli.Flag{profileFlag},
			Action:    destroyInstance,
		},
		{
			Name:      "list",
			Aliases:   []string{"ls"},
			Usage:     "List instances with local state",
			ArgsUsage: "[name]",
			Flags:     []cli.Flag{profileFlag},
			Action:    listInstances,
		},
		{
			Name:      "status",
			Usage:     "Show the current state of an instance",
			ArgsUsage: "<instance-id|name>",
			Flags:     []cli.Flag{profileFlag},
			Action:    statusInstance,
		},
		{
			Name:      "wait",
			Usage:     "Block until an instance reaches a state",
			ArgsUsage: "<instance-id|name>",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{Name: "state", Value: []string{string(providers.StateRunning)}, Usage: "Target state; repeat to accept several"},
				timeoutFlag,
				profileFlag,
			},
			Action: waitInstance,
		},
		{
			Name:      "connect",
			Usage:     "Connect (SSH) to an instance",
			ArgsUsage: "[name]",
			Flags:     []cli.Flag{profileFlag},
			Action:    connectInstance,
		},
		{
			Name:      "up",
			Usage:     "Start an instance and wait until it is running",
			ArgsUsage: "[instance-id|name]",
			Flags:     []cli.Flag{timeoutFlag, profileFlag},
			Action:    upInstance,
		},
		{
			Name:      "down",
			Usage:     "Stop an instance and wait until it is stopped",
			ArgsUsage: "[instance-id|name]",
			Flags:     []cli.Flag{timeoutFlag, profileFlag},
			Action:    downInstance,
		},
	}
}

// waitConfig applies --timeout over the profile's wait settings.
func waitConfig(cmd *cli.Command, profile *config.Profile) retry.Config {
	cfg := profile.Wait.RetryConfig()
	if d := cmd.Duration("timeout"); d > 0 {
		cfg.Timeout = d
	}
	return cfg
}

func launchInstance(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("instance name is required")
	}

	mgr, cfg, profileName, provider, err := getStackManager(cmd, name)
	if err != nil {
		return err
	}

	req := orchestration.LaunchRequest{
		Instance: providers.InstanceSpec{
			Name:        name,
			Type:        cfg.AWS.InstanceType,
			ProfileName: profileName,
		},
	}
	if t := cmd.String("type"); t != "" {
		req.Instance.Type = t
	}

	scriptRef := cmd.String("script")
	if scriptRef == "" {
		scriptRef = cfg.Script
	}
	if scriptRef != "" {
		m, err := userdata.NewManager()
		if err != nil {
			return err
		}
		doc, err := m.Resolve(scriptRef)
		if err != nil {
			return err
		}
		family, err := resolveFamily(cmd.String("os"), doc, cfg.OsFamily)
		if err != nil {
			return err
		}
		spec := doc.ToSpec()
		req.Script = &spec
		req.OsFamily = family
		if !strings.ContainsRune(scriptRef, os.PathSeparator) {
			req.Instance.UserDataName = scriptRef
		}
	}

	info, err := orchestration.NewLauncher(mgr, provider, waitConfig(cmd, cfg), nil).Launch(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("Instance '%s' is %s.\n", name, info.State)
	printRuntimeInfo(name, info)
	return nil
}

func destroyInstance(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("instance name is required")
	}

	mgr, _, _, _, err := getStackManager(cmd, name)
	if err != nil {
		return err
	}
	if _, err := mgr.Destroy(ctx); err != nil {
		return err
	}

	fmt.Printf("Instance '%s' destroyed.\n", name)
	return nil
}

func listInstances(ctx context.Context, cmd *cli.Command) error {
	profile, _, err := loadProfile(cmd)
	if err != nil {
		return err
	}
	provider, err := newCloudProvider(profile)
	if err != nil {
		return err
	}

	var instances []string
	if name := cmd.Args().First(); name != "" {
		instances = []string{name}
	} else {
		instances, err = orchestration.ListStacks(profile)
		if err != nil {
			return fmt.Errorf("failed to list instances: %w", err)
		}
	}

	if len(instances) == 0 {
		fmt.Println("No instances found.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"NAME", "PROFILE", "ID", "PUBLIC IP", "SCRIPT", "STATE"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, instName := range instances {
		outs, err := orchestration.NewStackManager(profile, provider, instName).GetOutputs(ctx)
		if err != nil {
			table.Append([]string{instName, "", "", "", "", "Error: " + err.Error()})
			continue
		}

		id, _ := outs[orchestration.InstanceIDOutput].Value.(string)
		publicIP, _ := outs["publicIP"].Value.(string)
		script, _ := outs["scriptName"].Value.(string)
		profileName, _ := outs["profileName"].Value.(string)
		if profileName == "" {
			profileName = "Unknown"
		}

		state := "Provisioning/Error"
		if id != "" {
			info, err := provider.DescribeState(ctx, id)
			switch {
			case err == nil:
				state = string(info.State)
			case errors.Is(err, providers.ErrNotFound):
				state = "not found"
			default:
				state = fmt.Sprintf("Error: %v", err)
			}
		}

		table.Append([]string{instName, profileName, id, publicIP, script, state})
	}

	table.Render()
	return nil
}

func statusInstance(ctx context.Context, cmd *cli.Command) error {
	profile, _, err := loadProfile(cmd)
	if err != nil {
		return err
	}
	describer, err := newDescriber(profile)
	if err != nil {
		return err
	}
	id, err := resolveInstanceID(ctx, profile, cmd.Args().First(), "")
	if err != nil {
		return err
	}

	info, err := describer.DescribeState(ctx, id)
	if err != nil {
		return err
	}
	printRuntimeInfo(cmd.Args().First(), info)
	return nil
}

func waitInstance(ctx context.Context, cmd *cli.Command) error {
	profile, _, err := loadProfile(cmd)
	if err != nil {
		return err
	}
	describer, err := newDescriber(profile)
	if err != nil {
		return err
	}
	states, err := parseStates(cmd.StringSlice("state"))
	if err != nil {
		return err
	}
	id, err := resolveInstanceID(ctx, profile, cmd.Args().First(), "")
	if err != nil {
		return err
	}

	fmt.Printf("Waiting for %s to reach %v...\n", id, states)
	if err := orchestration.WaitForState(ctx, describer, id, waitConfig(cmd, profile), slog.Default(), states...); err != nil {
		return err
	}
	fmt.Println("Done.")
	return nil
}

func connectInstance(ctx context.Context, cmd *cli.Command) error {
	profile, _, err := loadProfile(cmd)
	if err != nil {
		return err
	}
	name, err := selectInstance(ctx, profile, cmd.Args().First(), providers.StateRunning)
	if err != nil {
		return err
	}

	mgr, cfg, _, provider, err := getStackManager(cmd, name)
	if err != nil {
		return err
	}
	outs, err := mgr.GetOutputs(ctx)
	if err != nil {
		return err
	}

	ip, ok := outs["publicIP"].Value.(string)
	if !ok || ip == "" {
		return fmt.Errorf("publicIP output not found, instance might not be ready")
	}

	args := []string{}
	if key := strings.TrimSuffix(cfg.SSHPublicKey, ".pub"); key != "" {
		args = append(args, "-i", key)
	}
	args = append(args, fmt.Sprintf("%s@%s", provider.GetSSHUser(), ip))

	fmt.Printf("Connecting to %s (%s)...\n", name, ip)
	sshCmd := exec.CommandContext(ctx, "ssh", args...)
	sshCmd.Stdin = os.Stdin
	sshCmd.Stdout = os.Stdout
	sshCmd.Stderr = os.Stderr

	env := os.Environ()
	if cfg.AWS.Profile != "" {
		env = append(env, fmt.Sprintf("AWS_PROFILE=%s", cfg.AWS.Profile))
	}
	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	sshCmd.Env = env

	return sshCmd.Run()
}

func upInstance(ctx context.Context, cmd *cli.Command) error {
	return changePower(ctx, cmd, providers.StateStopped, providers.StateRunning)
}

func downInstance(ctx context.Context, cmd *cli.Command) error {
	return changePower(ctx, cmd, providers.StateRunning, providers.StateStopped)
}

// changePower starts or stops an instance and waits for the target state.
func changePower(ctx context.Context, cmd *cli.Command, from, to providers.InstanceState) error {
	profile, _, err := loadProfile(cmd)
	if err != nil {
		return err
	}
	provider, err := newCloudProvider(profile)
	if err != nil {
		return err
	}
	id, err := resolveInstanceID(ctx, profile, cmd.Args().First(), from)
	if err != nil {
		return err
	}

	if to == providers.StateRunning {
		fmt.Printf("Starting instance %s...\n", id)
		err = provider.StartInstance(ctx, id)
	} else {
		fmt.Printf("Stopping instance %s...\n", id)
		err = provider.StopInstance(ctx, id)
	}
	if err != nil {
		return err
	}

	if err := orchestration.WaitForState(ctx, provider, id, waitConfig(cmd, profile), slog.Default(), to); err != nil {
		return err
	}
	fmt.Printf("Instance %s is %s.\n", id, to)
	return nil
}

// resolveInstanceID accepts a provider instance ID or the name of an
// instance with local state. With no argument the user picks an instance,
// filtered to those in state filter when it is set.
func resolveInstanceID(ctx context.Context, profile *config.Profile, arg string, filter providers.InstanceState) (string, error) {
	if arg != "" {
		stacks, err := orchestration.ListStacks(profile)
		if err != nil || !slices.Contains(stacks, arg) {
			return arg, nil
		}
	}

	name, err := selectInstance(ctx, profile, arg, filter)
	if err != nil {
		return "", err
	}
	provider, err := newCloudProvider(profile)
	if err != nil {
		return "", err
	}
	outs, err := orchestration.NewStackManager(profile, provider, name).GetOutputs(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get stack outputs: %w", err)
	}
	id, ok := outs[orchestration.InstanceIDOutput].Value.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("instance ID not found in stack outputs")
	}
	return id, nil
}

func selectInstance(ctx context.Context, profile *config.Profile, name string, filter providers.InstanceState) (string, error) {
	if name != "" {
		return name, nil
	}

	candidates, err := instancesWithState(ctx, profile, filter)
	if err != nil {
		return "", err
	}

	switch len(candidates) {
	case 0:
		msg := "no instances found"
		if filter != "" {
			msg += fmt.Sprintf(" with state '%s'", filter)
		}
		return "", errors.New(msg)
	case 1:
		fmt.Printf("Selected '%s'\n", candidates[0])
		return candidates[0], nil
	}

	prompt := promptui.Select{
		Label: "Select instance",
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

func instancesWithState(ctx context.Context, profile *config.Profile, desired providers.InstanceState) ([]string, error) {
	stacks, err := orchestration.ListStacks(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	if desired == "" {
		return stacks, nil
	}
	provider, err := newCloudProvider(profile)
	if err != nil {
		return nil, err
	}

	fmt.Printf("Filtering instances by state '%s'...\n", desired)
	return filterByState(ctx, stacks, desired, func(ctx context.Context, name string) (*providers.RuntimeInfo, error) {
		outs, err := orchestration.NewStackManager(profile, provider, name).GetOutputs(ctx)
		if err != nil {
			return nil, err
		}
		id, ok := outs[orchestration.InstanceIDOutput].Value.(string)
		if !ok || id == "" {
			return nil, providers.ErrNotFound
		}
		return provider.DescribeState(ctx, id)
	}), nil
}

func parseStates(raw []string) ([]providers.InstanceState, error) {
	var states []providers.InstanceState
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			st := providers.ParseInstanceState(part)
			if st == providers.StateUnknown {
				return nil, fmt.Errorf("unknown instance state %q", strings.TrimSpace(part))
			}
			states = append(states, st)
		}
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("at least one --state is required")
	}
	return states, nil
}

func printRuntimeInfo(name string, info *providers.RuntimeInfo) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"NAME", "ID", "PUBLIC IP", "STATE"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.Append([]string{name, info.ID, info.PublicIP, string(info.State)})
	table.Render()
}
