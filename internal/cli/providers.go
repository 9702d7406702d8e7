package cli

import (
	"fmt"

	"bootkit/internal/config"
	"bootkit/internal/orchestration"
	"bootkit/internal/providers"
	"bootkit/internal/providers/aws"
	"bootkit/internal/providers/proxmox"

	"github.com/urfave/cli/v3"
)

var profileFlag = &cli.StringFlag{Name: "profile", Usage: "Configuration profile to use"}

func loadProfile(cmd *cli.Command) (*config.Profile, string, error) {
	loader, err := config.NewLoader()
	if err != nil {
		return nil, "", err
	}
	appCfg, err := loader.Load()
	if err != nil {
		return nil, "", err
	}
	profile, name, err := appCfg.Profile(cmd.String("profile"))
	if err != nil {
		return nil, "", err
	}
	return &profile, name, nil
}

// newCloudProvider returns a provider able to launch instances.
func newCloudProvider(profile *config.Profile) (providers.CloudProvider, error) {
	switch profile.Provider {
	case "aws":
		return aws.NewAWSProvider(*profile), nil
	case "proxmox":
		return nil, fmt.Errorf("provider 'proxmox' only supports status and wait")
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

// newDescriber returns a state lookup for the profile's provider.
func newDescriber(profile *config.Profile) (providers.StateDescriber, error) {
	switch profile.Provider {
	case "aws":
		return aws.NewAWSProvider(*profile), nil
	case "proxmox":
		return proxmox.NewDescriber(profile.Proxmox)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

func getStackManager(cmd *cli.Command, instanceName string) (*orchestration.StackManager, *config.Profile, string, providers.CloudProvider, error) {
	profile, profileName, err := loadProfile(cmd)
	if err != nil {
		return nil, nil, "", nil, err
	}
	provider, err := newCloudProvider(profile)
	if err != nil {
		return nil, nil, "", nil, err
	}
	mgr := orchestration.NewStackManager(profile, provider, instanceName)
	return mgr, profile, profileName, provider, nil
}
