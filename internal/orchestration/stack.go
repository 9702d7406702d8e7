package orchestration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"bootkit/internal/config"
	"bootkit/internal/providers"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optdestroy"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optup"
)

const projectName = "bootkit"

// StackManager handles the lifecycle of the Pulumi stack behind one instance.
type StackManager struct {
	stackName string
	project   string
	cfg       *config.Profile
	provider  providers.CloudProvider
	progress  io.Writer
	logger    *slog.Logger
}

// NewStackManager creates a stack manager for instanceName. Engine progress
// is streamed to stdout.
func NewStackManager(cfg *config.Profile, provider providers.CloudProvider, instanceName string) *StackManager {
	return &StackManager{
		stackName: instanceName,
		project:   projectName,
		cfg:       cfg,
		provider:  provider,
		progress:  os.Stdout,
		logger:    slog.Default().With("stack", instanceName),
	}
}

// getEnv builds the workspace environment. Local file backends get one
// directory per instance so stacks never share state files.
func (s *StackManager) getEnv() map[string]string {
	backend := s.cfg.PulumiBackend
	if strings.HasPrefix(backend, "file://") {
		backend = strings.TrimSuffix(backend, "/") + "/" + s.stackName
	}

	env := map[string]string{
		"PULUMI_CONFIG_PASSPHRASE": "",
		"PULUMI_BACKEND_URL":       backend,
	}
	if s.cfg.AWS.Profile != "" {
		env["AWS_PROFILE"] = s.cfg.AWS.Profile
	}
	env["AWS_REGION"] = s.cfg.Region
	return env
}

// stack upserts the inline-program stack. Destroy and output reads pass a
// spec carrying only the name; the engine only needs the program to exist.
func (s *StackManager) stack(ctx context.Context, spec providers.InstanceSpec) (auto.Stack, error) {
	env := s.getEnv()
	if backend := env["PULUMI_BACKEND_URL"]; strings.HasPrefix(backend, "file://") {
		if err := ensureLocalBackend(backend); err != nil {
			return auto.Stack{}, err
		}
	}

	program := s.provider.GetPulumiProgram(spec)
	stack, err := auto.UpsertStackInlineSource(ctx, s.stackName, s.project, program, auto.EnvVars(env))
	if err != nil {
		return auto.Stack{}, fmt.Errorf("failed to upsert stack: %w", err)
	}

	if s.provider.Name() == "aws" {
		if err := stack.SetConfig(ctx, "aws:region", auto.ConfigValue{Value: s.cfg.Region}); err != nil {
			return auto.Stack{}, fmt.Errorf("failed to set region config: %w", err)
		}
	}
	return stack, nil
}

// Up provisions the instance described by spec.
func (s *StackManager) Up(ctx context.Context, spec providers.InstanceSpec) (auto.UpResult, error) {
	stack, err := s.stack(ctx, spec)
	if err != nil {
		return auto.UpResult{}, err
	}

	s.logger.Info("provisioning instance", "provider", s.provider.Name())
	res, err := stack.Up(ctx, optup.ProgressStreams(s.progress))
	if err != nil {
		return auto.UpResult{}, fmt.Errorf("failed to update stack: %w", err)
	}
	return res, nil
}

// Destroy tears down the instance.
func (s *StackManager) Destroy(ctx context.Context) (auto.DestroyResult, error) {
	stack, err := s.stack(ctx, providers.InstanceSpec{Name: s.stackName})
	if err != nil {
		return auto.DestroyResult{}, err
	}

	s.logger.Info("destroying instance")
	res, err := stack.Destroy(ctx, optdestroy.ProgressStreams(s.progress))
	if err != nil {
		return auto.DestroyResult{}, fmt.Errorf("failed to destroy stack: %w", err)
	}
	return res, nil
}

// GetOutputs returns the stack outputs.
func (s *StackManager) GetOutputs(ctx context.Context) (auto.OutputMap, error) {
	stack, err := s.stack(ctx, providers.InstanceSpec{Name: s.stackName})
	if err != nil {
		return nil, err
	}

	outs, err := stack.Outputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get outputs: %w", err)
	}
	return outs, nil
}

// ensureLocalBackend creates the state directory for a file:// backend.
// Pulumi refuses to log in to a missing directory.
func ensureLocalBackend(backend string) error {
	dir, err := localBackendDir(backend)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}

// localBackendDir converts a file:// backend URL into a directory path,
// expanding a leading ~.
func localBackendDir(backend string) (string, error) {
	dir := strings.TrimPrefix(backend, "file://")
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dir = home + dir[1:]
	}
	return dir, nil
}
