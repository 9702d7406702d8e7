package aws

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bootkit/internal/config"
	"bootkit/internal/providers"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEC2 struct {
	describeOut *awsec2.DescribeInstancesOutput
	err         error

	describedIDs []string
	startedIDs   []string
	stoppedIDs   []string
}

func (f *fakeEC2) DescribeInstances(ctx context.Context, params *awsec2.DescribeInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeInstancesOutput, error) {
	f.describedIDs = append(f.describedIDs, params.InstanceIds...)
	if f.err != nil {
		return nil, f.err
	}
	return f.describeOut, nil
}

func (f *fakeEC2) StartInstances(ctx context.Context, params *awsec2.StartInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.StartInstancesOutput, error) {
	f.startedIDs = append(f.startedIDs, params.InstanceIds...)
	return &awsec2.StartInstancesOutput{}, f.err
}

func (f *fakeEC2) StopInstances(ctx context.Context, params *awsec2.StopInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.StopInstancesOutput, error) {
	f.stoppedIDs = append(f.stoppedIDs, params.InstanceIds...)
	return &awsec2.StopInstancesOutput{}, f.err
}

func reservation(state types.InstanceStateName, ip string) *awsec2.DescribeInstancesOutput {
	inst := types.Instance{
		InstanceId: awssdk.String("i-0abc"),
		State:      &types.InstanceState{Name: state},
	}
	if ip != "" {
		inst.PublicIpAddress = awssdk.String(ip)
	}
	return &awsec2.DescribeInstancesOutput{
		Reservations: []types.Reservation{{Instances: []types.Instance{inst}}},
	}
}

func TestAWSProvider_DescribeState(t *testing.T) {
	throttled := &smithy.GenericAPIError{Code: "RequestLimitExceeded", Message: "slow down"}

	tests := []struct {
		name         string
		client       *fakeEC2
		wantState    providers.InstanceState
		wantIP       string
		wantNotFound bool
		wantErr      error
	}{
		{
			name:      "running with ip",
			client:    &fakeEC2{describeOut: reservation(types.InstanceStateNameRunning, "203.0.113.7")},
			wantState: providers.StateRunning,
			wantIP:    "203.0.113.7",
		},
		{
			name:      "pending without ip",
			client:    &fakeEC2{describeOut: reservation(types.InstanceStateNamePending, "")},
			wantState: providers.StatePending,
		},
		{
			name:      "missing state",
			client:    &fakeEC2{describeOut: &awsec2.DescribeInstancesOutput{Reservations: []types.Reservation{{Instances: []types.Instance{{}}}}}},
			wantState: providers.StateUnknown,
		},
		{
			name:         "not found error code",
			client:       &fakeEC2{err: &smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound", Message: "The instance ID 'i-0abc' does not exist"}},
			wantNotFound: true,
		},
		{
			name:         "empty reservations",
			client:       &fakeEC2{describeOut: &awsec2.DescribeInstancesOutput{}},
			wantNotFound: true,
		},
		{
			name:         "reservation without instances",
			client:       &fakeEC2{describeOut: &awsec2.DescribeInstancesOutput{Reservations: []types.Reservation{{}}}},
			wantNotFound: true,
		},
		{
			name:    "other api errors propagate unchanged",
			client:  &fakeEC2{err: throttled},
			wantErr: throttled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newWithClient(config.Profile{Region: "us-east-1"}, tt.client)

			info, err := p.DescribeState(context.Background(), "i-0abc")
			assert.Equal(t, []string{"i-0abc"}, tt.client.describedIDs)

			switch {
			case tt.wantNotFound:
				require.ErrorIs(t, err, providers.ErrNotFound)
				assert.Nil(t, info)
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
				assert.False(t, errors.Is(err, providers.ErrNotFound))
			default:
				require.NoError(t, err)
				assert.Equal(t, "i-0abc", info.ID)
				assert.Equal(t, tt.wantState, info.State)
				assert.Equal(t, tt.wantIP, info.PublicIP)
			}
		})
	}
}

func TestAWSProvider_StartStop(t *testing.T) {
	client := &fakeEC2{}
	p := newWithClient(config.Profile{}, client)

	require.NoError(t, p.StartInstance(context.Background(), "i-1"))
	require.NoError(t, p.StopInstance(context.Background(), "i-2"))
	assert.Equal(t, []string{"i-1"}, client.startedIDs)
	assert.Equal(t, []string{"i-2"}, client.stoppedIDs)

	client.err = &smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound"}
	assert.ErrorIs(t, p.StartInstance(context.Background(), "i-3"), providers.ErrNotFound)
}

func TestAWSProvider_Metadata(t *testing.T) {
	p := NewAWSProvider(config.DefaultProfile())
	assert.Equal(t, "aws", p.Name())
	assert.Equal(t, "ubuntu", p.GetSSHUser())
}

func TestReadPublicKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "id.pub")
	require.NoError(t, os.WriteFile(path, []byte("ssh-ed25519 AAAA test"), 0o600))

	got, err := readPublicKey(path)
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519 AAAA test", got)

	_, err = readPublicKey("")
	assert.Error(t, err)

	_, err = readPublicKey(filepath.Join(dir, "missing.pub"))
	assert.Error(t, err)
}

func TestEC2UserData(t *testing.T) {
	tests := []struct {
		name string
		spec providers.InstanceSpec
		want string
	}{
		{name: "unix unchanged", spec: providers.InstanceSpec{UserData: "#!/bin/bash\n"}, want: "#!/bin/bash\n"},
		{name: "empty family is unix", spec: providers.InstanceSpec{OsFamily: "", UserData: "@echo off\r\n"}, want: "@echo off\r\n"},
		{name: "windows wrapped", spec: providers.InstanceSpec{OsFamily: "windows", UserData: "@echo off\r\n"}, want: "<script>\r\n@echo off\r\n</script>\r\n"},
		{name: "windows already tagged", spec: providers.InstanceSpec{OsFamily: "Windows", UserData: "<script>dir</script>"}, want: "<script>dir</script>"},
		{name: "windows empty", spec: providers.InstanceSpec{OsFamily: "windows"}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ec2UserData(tt.spec))
		})
	}
}
