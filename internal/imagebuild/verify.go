package imagebuild

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2type "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"andrewsaputra/ami-publisher-lambda/internal/build"
)

// EC2API is the subset of the EC2 client used to verify AMIs.
type EC2API interface {
	DescribeImages(
		ctx context.Context,
		params *ec2.DescribeImagesInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeImagesOutput, error)
}

var _ EC2API = (*ec2.Client)(nil)

func (r *Resolver) verify(ctx context.Context, amiId string) error {
	out, err := r.images.DescribeImages(ctx, &ec2.DescribeImagesInput{
		ImageIds: []string{amiId},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidAMIID.NotFound" {
			return fmt.Errorf("%w: %s not found", build.ErrImageNotAvailable, amiId)
		}
		return classify(ctx, err)
	}
	if out == nil {
		return fmt.Errorf("%w: %s not found", build.ErrImageNotAvailable, amiId)
	}

	for _, image := range out.Images {
		if image.ImageId == nil || *image.ImageId != amiId {
			continue
		}
		if image.State != ec2type.ImageStateAvailable {
			return fmt.Errorf("%w: %s is %s", build.ErrImageNotAvailable, amiId, image.State)
		}
		return nil
	}

	return fmt.Errorf("%w: %s not found", build.ErrImageNotAvailable, amiId)
}
