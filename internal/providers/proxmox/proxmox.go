// Package proxmox reports Proxmox VE virtual machine states in the shape
// the instance predicates expect.
package proxmox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	proxmoxapi "github.com/luthermonson/go-proxmox"

	"bootkit/internal/config"
	"bootkit/internal/providers"
)

// Environment fallbacks for credentials left out of the config file.
const (
	EnvTokenID = "PROXMOX_TOKEN_ID"
	EnvSecret  = "PROXMOX_SECRET"
)

// notFoundHints are fragments of Proxmox API errors for VMs or nodes that do
// not exist (yet). The API reports these as generic 500s.
var notFoundHints = []string{"does not exist", "no such", "not found"}

// vmStatusGetter is the single lookup the describer needs from the API.
type vmStatusGetter interface {
	VMStatus(ctx context.Context, node string, vmid int) (string, error)
}

type apiClient struct {
	client *proxmoxapi.Client
}

func (a apiClient) VMStatus(ctx context.Context, node string, vmid int) (string, error) {
	n, err := a.client.Node(ctx, node)
	if err != nil {
		return "", fmt.Errorf("node %s: %w", node, err)
	}
	vm, err := n.VirtualMachine(ctx, vmid)
	if err != nil {
		return "", fmt.Errorf("vm %d on %s: %w", vmid, node, err)
	}
	return string(vm.Status), nil
}

// Describer implements providers.StateDescriber. Instance IDs take the form
// "<node>/<vmid>", e.g. "pve1/105".
type Describer struct {
	api vmStatusGetter
}

var _ providers.StateDescriber = (*Describer)(nil)

// NewDescriber builds an API client from the profile's proxmox section.
func NewDescriber(cfg config.ProxmoxConfig) (*Describer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("proxmox endpoint is required")
	}
	tokenID := firstNonEmpty(cfg.TokenID, os.Getenv(EnvTokenID))
	if tokenID == "" {
		return nil, fmt.Errorf("proxmox token id is required (config or %s)", EnvTokenID)
	}
	secret := firstNonEmpty(cfg.Secret, os.Getenv(EnvSecret))
	if secret == "" {
		return nil, fmt.Errorf("proxmox secret is required (config or %s)", EnvSecret)
	}

	httpClient := &http.Client{}
	if cfg.InsecureSkipTLSVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	client := proxmoxapi.NewClient(
		cfg.Endpoint,
		proxmoxapi.WithHTTPClient(httpClient),
		proxmoxapi.WithAPIToken(tokenID, secret),
	)
	return &Describer{api: apiClient{client: client}}, nil
}

// ParseInstanceID splits "<node>/<vmid>".
func ParseInstanceID(id string) (string, int, error) {
	node, rawID, ok := strings.Cut(strings.TrimSpace(id), "/")
	if !ok || node == "" || rawID == "" {
		return "", 0, fmt.Errorf("invalid proxmox instance id %q: want <node>/<vmid>", id)
	}
	vmid, err := strconv.Atoi(rawID)
	if err != nil || vmid <= 0 {
		return "", 0, fmt.Errorf("invalid proxmox instance id %q: vmid must be a positive integer", id)
	}
	return node, vmid, nil
}

// DescribeState fetches the VM status. Missing VMs wrap providers.ErrNotFound.
func (d *Describer) DescribeState(ctx context.Context, instanceID string) (*providers.RuntimeInfo, error) {
	node, vmid, err := ParseInstanceID(instanceID)
	if err != nil {
		return nil, err
	}

	status, err := d.api.VMStatus(ctx, node, vmid)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %v", providers.ErrNotFound, err)
		}
		return nil, err
	}

	return &providers.RuntimeInfo{
		ID:    instanceID,
		State: providers.ParseInstanceState(status),
	}, nil
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, hint := range notFoundHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
