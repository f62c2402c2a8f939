package imagebuild

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2type "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/imagebuilder"
	"github.com/aws/aws-sdk-go-v2/service/imagebuilder/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"andrewsaputra/ami-publisher-lambda/internal/build"
)

const (
	testBuildArn    = "arn:aws:imagebuilder:us-east-1:123456789012:image/worker/0.0.7/1"
	testPipelineArn = "arn:aws:imagebuilder:us-east-1:123456789012:image-pipeline/target-worker"
)

type mockImagebuilderClient struct {
	getImageFunc func(ctx context.Context, params *imagebuilder.GetImageInput, optFns ...func(*imagebuilder.Options)) (*imagebuilder.GetImageOutput, error)
	calls        int
}

func (m *mockImagebuilderClient) GetImage(
	ctx context.Context,
	params *imagebuilder.GetImageInput,
	optFns ...func(*imagebuilder.Options),
) (*imagebuilder.GetImageOutput, error) {
	m.calls++
	if m.getImageFunc != nil {
		return m.getImageFunc(ctx, params, optFns...)
	}
	return nil, errors.New("GetImage not implemented")
}

type mockEC2Client struct {
	describeImagesFunc func(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
}

func (m *mockEC2Client) DescribeImages(
	ctx context.Context,
	params *ec2.DescribeImagesInput,
	optFns ...func(*ec2.Options),
) (*ec2.DescribeImagesOutput, error) {
	if m.describeImagesFunc != nil {
		return m.describeImagesFunc(ctx, params, optFns...)
	}
	return nil, errors.New("DescribeImages not implemented")
}

func imageOutput(pipelineArn string, amis ...types.Ami) *imagebuilder.GetImageOutput {
	return &imagebuilder.GetImageOutput{
		Image: &types.Image{
			Arn:               aws.String(testBuildArn),
			SourcePipelineArn: aws.String(pipelineArn),
			OutputResources:   &types.OutputResources{Amis: amis},
		},
	}
}

func ami(region, id string) types.Ami {
	return types.Ami{Region: aws.String(region), Image: aws.String(id)}
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		getImage func(ctx context.Context, params *imagebuilder.GetImageInput, optFns ...func(*imagebuilder.Options)) (*imagebuilder.GetImageOutput, error)
		wantErr  error
		validate func(t *testing.T, m *build.Metadata)
	}{
		{
			name: "single ami",
			ref:  testBuildArn,
			getImage: func(_ context.Context, params *imagebuilder.GetImageInput, _ ...func(*imagebuilder.Options)) (*imagebuilder.GetImageOutput, error) {
				assert.Equal(t, testBuildArn, aws.ToString(params.ImageBuildVersionArn))
				return imageOutput(testPipelineArn, ami("us-east-1", "ami-0123")), nil
			},
			validate: func(t *testing.T, m *build.Metadata) {
				assert.Equal(t, testBuildArn, m.ImageArn)
				assert.Equal(t, testPipelineArn, m.SourcePipelineArn)
				assert.Equal(t, []string{"ami-0123"}, m.ArtifactIDs)
				assert.Equal(t, "ami-0123", m.PrimaryArtifactID())
			},
		},
		{
			name: "multi region keeps order",
			ref:  testBuildArn,
			getImage: func(context.Context, *imagebuilder.GetImageInput, ...func(*imagebuilder.Options)) (*imagebuilder.GetImageOutput, error) {
				return imageOutput(testPipelineArn,
					ami("us-east-1", "ami-primary"),
					ami("eu-west-1", "ami-replica"),
				), nil
			},
			validate: func(t *testing.T, m *build.Metadata) {
				assert.Equal(t, []string{"ami-primary", "ami-replica"}, m.ArtifactIDs)
				assert.Equal(t, []string{"us-east-1", "eu-west-1"}, m.Regions)
				assert.Equal(t, "ami-primary", m.PrimaryArtifactID())
			},
		},
		{
			name:    "empty reference",
			ref:     " ",
			wantErr: build.ErrInvalidReference,
		},
		{
			name: "no artifacts",
			ref:  testBuildArn,
			getImage: func(context.Context, *imagebuilder.GetImageInput, ...func(*imagebuilder.Options)) (*imagebuilder.GetImageOutput, error) {
				return imageOutput(testPipelineArn), nil
			},
			wantErr: build.ErrNoArtifacts,
		},
		{
			name: "no output resources",
			ref:  testBuildArn,
			getImage: func(context.Context, *imagebuilder.GetImageInput, ...func(*imagebuilder.Options)) (*imagebuilder.GetImageOutput, error) {
				return &imagebuilder.GetImageOutput{Image: &types.Image{SourcePipelineArn: aws.String(testPipelineArn)}}, nil
			},
			wantErr: build.ErrNoArtifacts,
		},
		{
			name: "missing image",
			ref:  testBuildArn,
			getImage: func(context.Context, *imagebuilder.GetImageInput, ...func(*imagebuilder.Options)) (*imagebuilder.GetImageOutput, error) {
				return &imagebuilder.GetImageOutput{}, nil
			},
			wantErr: build.ErrBuildNotFound,
		},
		{
			name: "unknown reference",
			ref:  testBuildArn,
			getImage: func(context.Context, *imagebuilder.GetImageInput, ...func(*imagebuilder.Options)) (*imagebuilder.GetImageOutput, error) {
				return nil, &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "image not found"}
			},
			wantErr: build.ErrBuildNotFound,
		},
		{
			name: "timeout",
			ref:  testBuildArn,
			getImage: func(context.Context, *imagebuilder.GetImageInput, ...func(*imagebuilder.Options)) (*imagebuilder.GetImageOutput, error) {
				return nil, context.DeadlineExceeded
			},
			wantErr: build.ErrResolveTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockImagebuilderClient{getImageFunc: tt.getImage}
			metadata, err := NewResolver(client).Resolve(context.Background(), tt.ref)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Nil(t, metadata)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, build.IsResolutionError(err))
				return
			}

			require.NoError(t, err)
			require.NotNil(t, metadata)
			assert.Equal(t, 1, client.calls)
			tt.validate(t, metadata)
		})
	}
}

func TestResolver_Resolve_UnclassifiedError(t *testing.T) {
	cause := errors.New("connection reset")
	client := &mockImagebuilderClient{
		getImageFunc: func(context.Context, *imagebuilder.GetImageInput, ...func(*imagebuilder.Options)) (*imagebuilder.GetImageOutput, error) {
			return nil, cause
		},
	}

	_, err := NewResolver(client).Resolve(context.Background(), testBuildArn)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var re *build.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, testBuildArn, re.Reference)
}

func TestResolver_Resolve_WithImageVerification(t *testing.T) {
	available := func(context.Context, *imagebuilder.GetImageInput, ...func(*imagebuilder.Options)) (*imagebuilder.GetImageOutput, error) {
		return imageOutput(testPipelineArn, ami("us-east-1", "ami-0123")), nil
	}

	tests := []struct {
		name     string
		describe func(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
		wantErr  error
	}{
		{
			name: "available",
			describe: func(_ context.Context, params *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
				assert.Equal(t, []string{"ami-0123"}, params.ImageIds)
				return &ec2.DescribeImagesOutput{Images: []ec2type.Image{
					{ImageId: aws.String("ami-0123"), State: ec2type.ImageStateAvailable},
				}}, nil
			},
		},
		{
			name: "pending",
			describe: func(context.Context, *ec2.DescribeImagesInput, ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
				return &ec2.DescribeImagesOutput{Images: []ec2type.Image{
					{ImageId: aws.String("ami-0123"), State: ec2type.ImageStatePending},
				}}, nil
			},
			wantErr: build.ErrImageNotAvailable,
		},
		{
			name: "not returned",
			describe: func(context.Context, *ec2.DescribeImagesInput, ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
				return &ec2.DescribeImagesOutput{}, nil
			},
			wantErr: build.ErrImageNotAvailable,
		},
		{
			name: "not found error",
			describe: func(context.Context, *ec2.DescribeImagesInput, ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
				return nil, &smithy.GenericAPIError{Code: "InvalidAMIID.NotFound", Message: "no such ami"}
			},
			wantErr: build.ErrImageNotAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewResolver(
				&mockImagebuilderClient{getImageFunc: available},
				WithImageVerification(&mockEC2Client{describeImagesFunc: tt.describe}),
			)

			metadata, err := resolver.Resolve(context.Background(), testBuildArn)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, build.IsResolutionError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ami-0123", metadata.PrimaryArtifactID())
		})
	}
}
