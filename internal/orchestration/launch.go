package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bootkit/internal/predicates"
	"bootkit/internal/providers"
	"bootkit/internal/retry"
	"bootkit/internal/scriptbuilder"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
)

// InstanceIDOutput is the stack output every provider program exports.
const InstanceIDOutput = "instanceID"

// ErrNoInstanceID is returned when a stack update exports no instance ID.
var ErrNoInstanceID = errors.New("stack did not export an instance id")

// Provisioner creates or updates the instance stack. *StackManager
// implements it.
type Provisioner interface {
	Up(ctx context.Context, spec providers.InstanceSpec) (auto.UpResult, error)
}

// LaunchRequest describes one instance launch.
type LaunchRequest struct {
	Instance providers.InstanceSpec
	// Script, when set, is rendered for OsFamily and wrapped in a launcher
	// that installs and starts it at boot. It replaces Instance.UserData.
	Script   *scriptbuilder.Spec
	OsFamily scriptbuilder.OsFamily
}

// Launcher provisions an instance and blocks until it is running.
type Launcher struct {
	provisioner Provisioner
	describer   providers.StateDescriber
	wait        retry.Config
	logger      *slog.Logger
}

// NewLauncher wires a launcher. A nil logger uses slog.Default().
func NewLauncher(p Provisioner, d providers.StateDescriber, wait retry.Config, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{provisioner: p, describer: d, wait: wait, logger: logger}
}

// Launch renders the init script, runs the stack update and waits for the
// new instance to reach the running state.
func (l *Launcher) Launch(ctx context.Context, req LaunchRequest) (*providers.RuntimeInfo, error) {
	spec := req.Instance
	if req.Script != nil {
		userData, err := scriptbuilder.UserData(*req.Script, req.OsFamily)
		if err != nil {
			return nil, fmt.Errorf("failed to render init script: %w", err)
		}
		spec.UserData = userData
		spec.OsFamily = req.OsFamily.String()
		if spec.UserDataName == "" {
			spec.UserDataName = req.Script.Name
		}
	}

	res, err := l.provisioner.Up(ctx, spec)
	if err != nil {
		return nil, err
	}

	id, err := instanceID(res.Outputs)
	if err != nil {
		return nil, err
	}
	l.logger.Info("instance created, waiting for running state", "instance", spec.Name, "id", id)

	if err := WaitForState(ctx, l.describer, id, l.wait, l.logger, providers.StateRunning); err != nil {
		return nil, err
	}

	info, err := l.describer.DescribeState(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance %s: %w", id, err)
	}
	return info, nil
}

// WaitForState polls describer until instance id reports one of states.
// retry.ErrTimeout is returned when cfg.Timeout elapses first. Each lookup
// is traced on logger at debug level; nil discards the trace.
func WaitForState(ctx context.Context, describer providers.StateDescriber, id string, cfg retry.Config, logger *slog.Logger, states ...providers.InstanceState) error {
	if len(states) == 0 {
		return fmt.Errorf("no target state given")
	}
	pred := predicates.NewInstanceState(describer, predicates.StateIs(states...), logger)
	if err := retry.Until(ctx, cfg, func(ctx context.Context) (bool, error) {
		return pred.Apply(ctx, id)
	}); err != nil {
		return fmt.Errorf("waiting for %s to reach %v: %w", id, states, err)
	}
	return nil
}

func instanceID(outputs auto.OutputMap) (string, error) {
	out, ok := outputs[InstanceIDOutput]
	if !ok {
		return "", ErrNoInstanceID
	}
	id, ok := out.Value.(string)
	if !ok || id == "" {
		return "", ErrNoInstanceID
	}
	return id, nil
}
