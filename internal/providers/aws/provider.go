package aws

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"bootkit/internal/config"
	"bootkit/internal/providers"

	// AWS SDK v2
	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"

	// Pulumi AWS
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// notFoundCodes are EC2 error codes meaning the instance is not visible yet.
var notFoundCodes = []string{"InvalidInstanceID.NotFound"}

// ec2API is the subset of the EC2 client the provider calls.
type ec2API interface {
	DescribeInstances(ctx context.Context, params *awsec2.DescribeInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeInstancesOutput, error)
	StartInstances(ctx context.Context, params *awsec2.StartInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, params *awsec2.StopInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.StopInstancesOutput, error)
}

type AWSProvider struct {
	cfg config.Profile

	once    sync.Once
	client  ec2API
	initErr error
}

var _ providers.CloudProvider = (*AWSProvider)(nil)

func NewAWSProvider(cfg config.Profile) *AWSProvider {
	return &AWSProvider{cfg: cfg}
}

// newWithClient is used by tests to bypass credential loading.
func newWithClient(cfg config.Profile, client ec2API) *AWSProvider {
	p := &AWSProvider{cfg: cfg, client: client}
	p.once.Do(func() {})
	return p
}

func (p *AWSProvider) Name() string {
	return "aws"
}

func (p *AWSProvider) GetSSHUser() string {
	// Default AMIs are Ubuntu; Amazon Linux would be "ec2-user".
	return "ubuntu"
}

func (p *AWSProvider) ec2Client(ctx context.Context) (ec2API, error) {
	p.once.Do(func() {
		opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(p.cfg.Region)}
		if p.cfg.AWS.Profile != "" {
			opts = append(opts, awscfg.WithSharedConfigProfile(p.cfg.AWS.Profile))
		}
		cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			p.initErr = fmt.Errorf("failed to load aws config: %w", err)
			return
		}
		p.client = awsec2.NewFromConfig(cfg)
	})
	return p.client, p.initErr
}

// DescribeState uses the EC2 API to fetch the current instance state.
func (p *AWSProvider) DescribeState(ctx context.Context, instanceID string) (*providers.RuntimeInfo, error) {
	client, err := p.ec2Client(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.DescribeInstances(ctx, &awsec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return nil, classify(instanceID, err)
	}

	// The API may answer with an empty reservation list for an instance it has
	// just accepted.
	if len(resp.Reservations) == 0 {
		return nil, fmt.Errorf("describe instance %s: %w", instanceID, providers.ErrNotFound)
	}
	last := resp.Reservations[len(resp.Reservations)-1]
	if len(last.Instances) == 0 {
		return nil, fmt.Errorf("describe instance %s: %w", instanceID, providers.ErrNotFound)
	}
	inst := last.Instances[len(last.Instances)-1]

	info := &providers.RuntimeInfo{
		ID:       instanceID,
		PublicIP: awssdk.ToString(inst.PublicIpAddress),
		State:    providers.StateUnknown,
	}
	if inst.State != nil {
		info.State = providers.ParseInstanceState(string(inst.State.Name))
	}
	return info, nil
}

// StartInstance requests a start; it does not wait for the transition.
func (p *AWSProvider) StartInstance(ctx context.Context, instanceID string) error {
	client, err := p.ec2Client(ctx)
	if err != nil {
		return err
	}
	if _, err := client.StartInstances(ctx, &awsec2.StartInstancesInput{InstanceIds: []string{instanceID}}); err != nil {
		return classify(instanceID, err)
	}
	return nil
}

// StopInstance requests a stop; it does not wait for the transition.
func (p *AWSProvider) StopInstance(ctx context.Context, instanceID string) error {
	client, err := p.ec2Client(ctx)
	if err != nil {
		return err
	}
	if _, err := client.StopInstances(ctx, &awsec2.StopInstancesInput{InstanceIds: []string{instanceID}}); err != nil {
		return classify(instanceID, err)
	}
	return nil
}

// classify wraps providers.ErrNotFound around EC2 not-found error codes and
// leaves every other error untouched.
func classify(instanceID string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		for _, code := range notFoundCodes {
			if apiErr.ErrorCode() == code {
				return fmt.Errorf("instance %s: %w: %s", instanceID, providers.ErrNotFound, apiErr.ErrorMessage())
			}
		}
	}
	return err
}

func (p *AWSProvider) GetPulumiProgram(spec providers.InstanceSpec) pulumi.RunFunc {
	return func(ctx *pulumi.Context) error {
		sg, err := p.securityGroup(ctx, spec.Name)
		if err != nil {
			return err
		}

		profile, err := ssmInstanceProfile(ctx, spec.Name)
		if err != nil {
			return err
		}

		var keyName pulumi.StringInput
		if p.cfg.SSHPublicKey != "" {
			keyContent, err := readPublicKey(p.cfg.SSHPublicKey)
			if err != nil {
				return fmt.Errorf("failed to read ssh key: %w", err)
			}
			key, err := ec2.NewKeyPair(ctx, spec.Name+"-key", &ec2.KeyPairArgs{
				PublicKey: pulumi.String(keyContent),
			})
			if err != nil {
				return err
			}
			keyName = key.KeyName
		}

		amiID, err := p.lookupAMI(ctx, isWindows(spec))
		if err != nil {
			return err
		}

		instanceType := spec.Type
		if instanceType == "" {
			instanceType = p.cfg.AWS.InstanceType
		}
		if instanceType == "" {
			instanceType = "t3.micro"
		}

		tags := pulumi.StringMap{"Name": pulumi.String(spec.Name)}
		if spec.UserDataName != "" {
			tags["BootkitScript"] = pulumi.String(spec.UserDataName)
		}
		for k, v := range spec.Tags {
			tags[k] = pulumi.String(v)
		}

		srv, err := ec2.NewInstance(ctx, spec.Name, &ec2.InstanceArgs{
			InstanceType:        pulumi.String(instanceType),
			VpcSecurityGroupIds: pulumi.StringArray{sg.ID()},
			Ami:                 pulumi.String(amiID),
			KeyName:             keyName,
			IamInstanceProfile:  profile.Name,
			UserData:            pulumi.String(ec2UserData(spec)),
			Tags:                tags,
		})
		if err != nil {
			return err
		}

		ctx.Export("instanceID", srv.ID())
		ctx.Export("publicIP", srv.PublicIp)
		ctx.Export("publicDNS", srv.PublicDns)
		ctx.Export("scriptName", pulumi.String(spec.UserDataName))
		ctx.Export("profileName", pulumi.String(spec.ProfileName))
		return nil
	}
}

// ssmPolicyARN lets Session Manager reach the instance without SSH.
const ssmPolicyARN = "arn:aws:iam::aws:policy/AmazonSSMManagedInstanceCore"

const ec2AssumeRolePolicy = `{
	"Version": "2012-10-17",
	"Statement": [{
		"Action": "sts:AssumeRole",
		"Principal": {"Service": "ec2.amazonaws.com"},
		"Effect": "Allow",
		"Sid": ""
	}]
}`

// ssmInstanceProfile creates a role EC2 can assume with the SSM core policy
// attached, wrapped in an instance profile.
func ssmInstanceProfile(ctx *pulumi.Context, name string) (*iam.InstanceProfile, error) {
	role, err := iam.NewRole(ctx, name+"-role", &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(ec2AssumeRolePolicy),
		Tags: pulumi.StringMap{
			"Name": pulumi.String(name + "-role"),
		},
	})
	if err != nil {
		return nil, err
	}

	if _, err := iam.NewRolePolicyAttachment(ctx, name+"-rpa", &iam.RolePolicyAttachmentArgs{
		Role:      role.Name,
		PolicyArn: pulumi.String(ssmPolicyARN),
	}); err != nil {
		return nil, err
	}

	return iam.NewInstanceProfile(ctx, name+"-profile", &iam.InstanceProfileArgs{
		Role: role.Name,
	})
}

func isWindows(spec providers.InstanceSpec) bool {
	return strings.EqualFold(spec.OsFamily, "windows")
}

// ec2UserData adapts user data to the instance's boot agent. EC2Launch only
// runs batch user data inside <script> tags; cloud-init takes it as is.
func ec2UserData(spec providers.InstanceSpec) string {
	if !isWindows(spec) || spec.UserData == "" || strings.HasPrefix(strings.TrimSpace(spec.UserData), "<script>") {
		return spec.UserData
	}
	return "<script>\r\n" + spec.UserData + "</script>\r\n"
}

// defaultIngress opens SSH when the profile configures no ingress rules.
var defaultIngress = []config.SecurityGroupRule{
	{Protocol: "tcp", FromPort: 22, ToPort: 22, CidrBlocks: []string{"0.0.0.0/0"}},
}

var defaultEgress = []config.SecurityGroupRule{
	{Protocol: "-1", FromPort: 0, ToPort: 0, CidrBlocks: []string{"0.0.0.0/0"}},
}

func (p *AWSProvider) securityGroup(ctx *pulumi.Context, name string) (*ec2.SecurityGroup, error) {
	ingressRules := p.cfg.AWS.IngressRules
	if len(ingressRules) == 0 {
		ingressRules = defaultIngress
	}
	egressRules := p.cfg.AWS.EgressRules
	if len(egressRules) == 0 {
		egressRules = defaultEgress
	}

	var ingress ec2.SecurityGroupIngressArray
	for _, r := range ingressRules {
		ingress = append(ingress, &ec2.SecurityGroupIngressArgs{
			Protocol:   pulumi.String(r.Protocol),
			FromPort:   pulumi.Int(r.FromPort),
			ToPort:     pulumi.Int(r.ToPort),
			CidrBlocks: pulumi.ToStringArray(r.CidrBlocks),
		})
	}
	var egress ec2.SecurityGroupEgressArray
	for _, r := range egressRules {
		egress = append(egress, &ec2.SecurityGroupEgressArgs{
			Protocol:   pulumi.String(r.Protocol),
			FromPort:   pulumi.Int(r.FromPort),
			ToPort:     pulumi.Int(r.ToPort),
			CidrBlocks: pulumi.ToStringArray(r.CidrBlocks),
		})
	}

	return ec2.NewSecurityGroup(ctx, name+"-sg", &ec2.SecurityGroupArgs{
		Description: pulumi.String("bootkit instance access"),
		Ingress:     ingress,
		Egress:      egress,
		Tags: pulumi.StringMap{
			"Name": pulumi.String(name + "-sg"),
		},
	})
}

// lookupAMI returns the configured AMI, or the latest Ubuntu 22.04 or
// Windows Server 2022 base image.
func (p *AWSProvider) lookupAMI(ctx *pulumi.Context, windows bool) (string, error) {
	if p.cfg.AWS.AMI != "" {
		return p.cfg.AWS.AMI, nil
	}
	mostRecent := true
	if windows {
		image, err := ec2.LookupAmi(ctx, &ec2.LookupAmiArgs{
			MostRecent: &mostRecent,
			Filters: []ec2.GetAmiFilter{
				{Name: "name", Values: []string{"Windows_Server-2022-English-Full-Base-*"}},
			},
			Owners: []string{"801119661308"}, // Amazon
		})
		if err != nil {
			return "", err
		}
		return image.Id, nil
	}
	ubuntu, err := ec2.LookupAmi(ctx, &ec2.LookupAmiArgs{
		MostRecent: &mostRecent,
		Filters: []ec2.GetAmiFilter{
			{Name: "name", Values: []string{"ubuntu/images/hvm-ssd/ubuntu-jammy-22.04-amd64-server-*"}},
			{Name: "virtualization-type", Values: []string{"hvm"}},
		},
		Owners: []string{"099720109477"}, // Canonical
	})
	if err != nil {
		return "", err
	}
	return ubuntu.Id, nil
}

func readPublicKey(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("ssh public key path is empty")
	}

	if strings.HasPrefix(path, "~/") {
		dirname, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(dirname, path[2:])
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
