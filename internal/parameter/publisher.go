// Package parameter writes the latest AMI id to an SSM parameter.
package parameter

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"

	"andrewsaputra/ami-publisher-lambda/internal/build"
)

// SSMAPI is the subset of the SSM client used here.
type SSMAPI interface {
	PutParameter(
		ctx context.Context,
		params *ssm.PutParameterInput,
		optFns ...func(*ssm.Options),
	) (*ssm.PutParameterOutput, error)
}

var _ SSMAPI = (*ssm.Client)(nil)

// Publisher overwrites a String parameter. It never compares the current
// value: the last write wins.
type Publisher struct {
	client SSMAPI
}

func NewPublisher(client SSMAPI) *Publisher {
	return &Publisher{client: client}
}

// Publish sets name to value. Failures are returned as *build.PublishError
// and are not retried here.
func (p *Publisher) Publish(ctx context.Context, name, value string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(value) == "" {
		return build.NewPublishError(name, build.ErrInvalidParameter)
	}

	_, err := p.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(name),
		Value:     aws.String(value),
		Type:      types.ParameterTypeString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return build.NewPublishError(name, classify(err))
	}
	return nil
}

// Error codes treated as the store being unavailable rather than the
// request being wrong.
var unavailableCodes = map[string]bool{
	"InternalServerError": true,
	"ThrottlingException": true,
	"TooManyUpdates":      true,
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(build.ErrStoreUnavailable, err)
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch {
	case apiErr.ErrorCode() == "AccessDeniedException":
		return errors.Join(build.ErrAccessDenied, err)
	case unavailableCodes[apiErr.ErrorCode()], apiErr.ErrorFault() == smithy.FaultServer:
		return errors.Join(build.ErrStoreUnavailable, err)
	}
	return err
}
