package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/imagebuilder"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"andrewsaputra/ami-publisher-lambda/internal/build"
	"andrewsaputra/ami-publisher-lambda/internal/imagebuild"
	"andrewsaputra/ami-publisher-lambda/internal/parameter"
	"andrewsaputra/ami-publisher-lambda/internal/pipeline"
	"andrewsaputra/ami-publisher-lambda/internal/record"
	"andrewsaputra/ami-publisher-lambda/internal/workflow"
)

// Runner executes the workflow for one build completion.
type Runner interface {
	Run(ctx context.Context, ev build.Event) (*workflow.Result, error)
}

// Handler is the boundary between EventBridge and the workflow.
type Handler struct {
	runner Runner
	logger *slog.Logger
}

func NewHandler(runner Runner, logger *slog.Logger) *Handler {
	return &Handler{runner: runner, logger: logger}
}

// HandleRequest runs the workflow for AVAILABLE image events. Events from
// other sources and other statuses are logged and dropped with a nil result.
func (h *Handler) HandleRequest(ctx context.Context, event events.CloudWatchEvent) (*workflow.Result, error) {
	PrintImageEvent(h.logger, event)

	if event.Source != ImageBuilderEventSource || event.DetailType != ImageStateChangeDetailType {
		h.logger.Warn("ignoring unexpected event", "source", event.Source, "detailType", event.DetailType)
		return nil, nil
	}

	buildEvent, err := ParseImageEvent(event)
	if err != nil {
		h.logger.Error("failed to parse event", "eventId", event.ID, "error", err)
		return nil, err
	}
	if !buildEvent.Available() {
		h.logger.Info("ignoring image state", "eventId", event.ID, "status", buildEvent.Status)
		return nil, nil
	}

	return h.runner.Run(ctx, buildEvent)
}

func PrintImageEvent(logger *slog.Logger, event events.CloudWatchEvent) {
	rawBytes, err := json.Marshal(event)
	if err != nil {
		logger.Warn("failed to print image event", "error", err)
		return
	}

	logger.Info("received event", "event", json.RawMessage(rawBytes))
}

// ParseImageEvent extracts the build reference and status. The build
// reference is the first resource of the event; it may be empty, in which
// case the workflow rejects it.
func ParseImageEvent(event events.CloudWatchEvent) (build.Event, error) {
	var detail ImageStateChangeDetail
	if len(event.Detail) > 0 {
		if err := json.Unmarshal(event.Detail, &detail); err != nil {
			return build.Event{}, fmt.Errorf("decode event detail: %w", err)
		}
	}
	if detail.State == nil || detail.State.Status == "" {
		return build.Event{}, errors.New("event detail has no state.status")
	}

	buildEvent := build.Event{
		ID:     event.ID,
		Region: event.Region,
		Time:   event.Time,
		Status: build.Status(strings.ToUpper(detail.State.Status)),
	}
	if len(event.Resources) > 0 {
		buildEvent.BuildReference = event.Resources[0]
	}
	return buildEvent, nil
}

// LoadUserParameters reads the func_* environment through getenv.
func LoadUserParameters(getenv func(string) string) (UserParameters, error) {
	params := UserParameters{
		FunctionRegion:   getenv("AWS_REGION"),
		TargetPipeline:   strings.TrimSpace(getenv("func_TargetPipeline")),
		AmiParameterName: strings.TrimSpace(getenv("func_AmiParameterName")),
		RecordBucket:     strings.TrimSpace(getenv("func_RecordBucket")),
		RecordPrefix:     strings.TrimSpace(getenv("func_RecordPrefix")),
		EndpointUrl:      strings.TrimSpace(getenv("func_EndpointUrl")),
		LogLevel:         strings.TrimSpace(getenv("func_LogLevel")),
	}

	if raw := strings.TrimSpace(getenv("func_VerifyImage")); raw != "" {
		verify, err := strconv.ParseBool(raw)
		if err != nil {
			return params, fmt.Errorf("func_VerifyImage: %w", err)
		}
		params.VerifyImage = verify
	}
	if params.RecordPrefix == "" {
		params.RecordPrefix = DefaultRecordPrefix
	}
	if params.LogLevel == "" {
		params.LogLevel = DefaultLogLevel
	}

	if params.TargetPipeline == "" {
		return params, errors.New("func_TargetPipeline is required")
	}
	if params.AmiParameterName == "" {
		return params, errors.New("func_AmiParameterName is required")
	}
	return params, nil
}

func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// LoadAwsConfig loads the default config. With an endpoint override every
// client talks to that endpoint with static test credentials (LocalStack).
func LoadAwsConfig(ctx context.Context, params UserParameters) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(params.FunctionRegion),
	}

	if params.EndpointUrl != "" {
		endpoint := params.EndpointUrl
		opts = append(opts,
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("test", "test", ""),
			),
			config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:               endpoint,
						SigningRegion:     region,
						HostnameImmutable: true,
					}, nil
				},
			)),
		)
	}

	return config.LoadDefaultConfig(ctx, opts...)
}

// NewWorkflow wires the AWS clients into a workflow for params.
func NewWorkflow(cfg aws.Config, params UserParameters, logger *slog.Logger) (*workflow.Workflow, error) {
	target, err := pipeline.NewTarget(params.TargetPipeline)
	if err != nil {
		return nil, err
	}

	var resolverOpts []imagebuild.Option
	if params.VerifyImage {
		resolverOpts = append(resolverOpts, imagebuild.WithImageVerification(ec2.NewFromConfig(cfg)))
	}
	resolver := imagebuild.NewResolver(imagebuilder.NewFromConfig(cfg), resolverOpts...)
	publisher := parameter.NewPublisher(ssm.NewFromConfig(cfg))

	opts := []workflow.Option{workflow.WithLogger(logger)}
	if params.RecordBucket != "" {
		s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.UsePathStyle = params.EndpointUrl != ""
		})
		opts = append(opts, workflow.WithRecorder(record.NewRecorder(s3Client, params.RecordBucket, params.RecordPrefix)))
	}

	return workflow.New(resolver, publisher, target, params.AmiParameterName, opts...)
}
