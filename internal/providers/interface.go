package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// ErrNotFound is wrapped by describers when the backend does not (yet) know
// the requested instance. Freshly created instances can report this for a
// while before becoming visible.
var ErrNotFound = errors.New("instance not found")

// InstanceState is the lifecycle state reported by a backend, normalized to
// the EC2 vocabulary.
type InstanceState string

const (
	StatePending      InstanceState = "pending"
	StateRunning      InstanceState = "running"
	StateShuttingDown InstanceState = "shutting-down"
	StateTerminated   InstanceState = "terminated"
	StateStopping     InstanceState = "stopping"
	StateStopped      InstanceState = "stopped"
	StateUnknown      InstanceState = "unknown"
)

var knownStates = []InstanceState{
	StatePending, StateRunning, StateShuttingDown, StateTerminated, StateStopping, StateStopped,
}

// ParseInstanceState maps a raw state name onto InstanceState. Unrecognized
// names yield StateUnknown.
func ParseInstanceState(s string) InstanceState {
	needle := InstanceState(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range knownStates {
		if st == needle {
			return st
		}
	}
	return StateUnknown
}

// InstanceSpec defines the desired state of an instance.
type InstanceSpec struct {
	Name         string
	Type         string            // e.g. "t3.micro"
	ProfileName  string            // Profile used to create the instance
	UserData     string            // Boot-time user data, usually a rendered init script launcher
	OsFamily     string            // "unix" or "windows"; empty means unix
	UserDataName string            // Name of the stored script document (optional)
	Tags         map[string]string // Resource tags
}

// RuntimeInfo contains status data fetched from the cloud provider.
type RuntimeInfo struct {
	ID       string
	PublicIP string
	State    InstanceState
}

// StateDescriber fetches the current state of a single instance.
type StateDescriber interface {
	// DescribeState returns a fresh snapshot. Implementations wrap ErrNotFound
	// when the instance is not visible; other failures are returned as is.
	DescribeState(ctx context.Context, instanceID string) (*RuntimeInfo, error)
}

// PowerController starts and stops existing instances.
type PowerController interface {
	StartInstance(ctx context.Context, instanceID string) error
	StopInstance(ctx context.Context, instanceID string) error
}

// CloudProvider defines the contract for any cloud backend that bootkit can
// launch instances on.
type CloudProvider interface {
	StateDescriber
	PowerController

	// Name returns the provider identifier (e.g. "aws").
	Name() string

	// GetPulumiProgram returns the logic to run inside the Pulumi engine.
	GetPulumiProgram(spec InstanceSpec) pulumi.RunFunc

	// GetSSHUser returns the default username for SSH connections (e.g. "ubuntu").
	GetSSHUser() string
}
