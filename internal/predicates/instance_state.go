// Package predicates holds single-shot checks against remote instance state.
// They perform one lookup per call and leave retrying to the caller.
package predicates

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"

	"bootkit/internal/providers"
)

// Condition is evaluated against a freshly fetched snapshot.
type Condition func(info providers.RuntimeInfo) bool

// StateIs matches when the instance is in any of states.
func StateIs(states ...providers.InstanceState) Condition {
	want := slices.Clone(states)
	return func(info providers.RuntimeInfo) bool {
		return slices.Contains(want, info.State)
	}
}

// InstanceState tests whether an instance currently satisfies a Condition.
type InstanceState struct {
	client providers.StateDescriber
	cond   Condition
	logger *slog.Logger
}

// NewInstanceState builds the predicate. A nil logger discards output.
func NewInstanceState(client providers.StateDescriber, cond Condition, logger *slog.Logger) *InstanceState {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &InstanceState{client: client, cond: cond, logger: logger}
}

// Running waits for providers.StateRunning.
func Running(client providers.StateDescriber, logger *slog.Logger) *InstanceState {
	return NewInstanceState(client, StateIs(providers.StateRunning), logger)
}

// Apply fetches the instance once and evaluates the condition. An instance
// the backend does not know yet counts as not satisfied; every other lookup
// error is returned unchanged.
func (p *InstanceState) Apply(ctx context.Context, instanceID string) (bool, error) {
	p.logger.Debug("looking for state on instance", "instance", instanceID)

	info, err := p.client.DescribeState(ctx, instanceID)
	if err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			p.logger.Debug("instance not visible yet", "instance", instanceID)
			return false, nil
		}
		return false, err
	}

	ok := p.cond(*info)
	p.logger.Debug("instance state", "instance", instanceID, "state", info.State, "satisfied", ok)
	return ok, nil
}
