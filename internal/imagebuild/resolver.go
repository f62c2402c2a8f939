// Package imagebuild resolves an image build version ARN into the AMIs it
// produced and the pipeline that produced it.
package imagebuild

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/imagebuilder"
	"github.com/aws/smithy-go"

	"andrewsaputra/ami-publisher-lambda/internal/build"
)

// ImagebuilderAPI is the subset of the Image Builder client used here.
type ImagebuilderAPI interface {
	GetImage(
		ctx context.Context,
		params *imagebuilder.GetImageInput,
		optFns ...func(*imagebuilder.Options),
	) (*imagebuilder.GetImageOutput, error)
}

var _ ImagebuilderAPI = (*imagebuilder.Client)(nil)

// Resolver looks up build metadata with a single GetImage call, optionally
// followed by an EC2 check of the primary AMI.
type Resolver struct {
	client ImagebuilderAPI
	images EC2API
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithImageVerification makes Resolve confirm through EC2 that the primary
// AMI exists and is available.
func WithImageVerification(client EC2API) Option {
	return func(r *Resolver) {
		r.images = client
	}
}

func NewResolver(client ImagebuilderAPI, opts ...Option) *Resolver {
	r := &Resolver{client: client}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the metadata of the build behind ref. Every failure is a
// *build.ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*build.Metadata, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, build.NewResolutionError(ref, build.ErrInvalidReference)
	}

	out, err := r.client.GetImage(ctx, &imagebuilder.GetImageInput{
		ImageBuildVersionArn: aws.String(ref),
	})
	if err != nil {
		return nil, build.NewResolutionError(ref, classify(ctx, err))
	}
	if out == nil || out.Image == nil {
		return nil, build.NewResolutionError(ref, build.ErrBuildNotFound)
	}

	image := out.Image
	metadata := &build.Metadata{
		ImageArn:          aws.ToString(image.Arn),
		SourcePipelineArn: aws.ToString(image.SourcePipelineArn),
	}
	if image.OutputResources != nil {
		for _, ami := range image.OutputResources.Amis {
			metadata.ArtifactIDs = append(metadata.ArtifactIDs, aws.ToString(ami.Image))
			metadata.Regions = append(metadata.Regions, aws.ToString(ami.Region))
		}
	}
	if metadata.PrimaryArtifactID() == "" {
		return nil, build.NewResolutionError(ref, build.ErrNoArtifacts)
	}

	if r.images != nil {
		if err := r.verify(ctx, metadata.PrimaryArtifactID()); err != nil {
			return nil, build.NewResolutionError(ref, err)
		}
	}

	return metadata, nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Join(build.ErrResolveTimeout, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
		return errors.Join(build.ErrBuildNotFound, err)
	}
	return err
}
