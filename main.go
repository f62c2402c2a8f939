package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"andrewsaputra/ami-publisher-lambda/internal/workflow"
)

var userParameters UserParameters
var initErr error

var eventHandler *Handler

func init() {
	initErr = setup()
	if initErr != nil {
		fmt.Println("init() failed:", initErr)
	}
}

func setup() error {
	params, err := LoadUserParameters(os.Getenv)
	if err != nil {
		return err
	}
	userParameters = params

	logger, err := NewLogger(os.Stdout, userParameters.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	cfg, err := LoadAwsConfig(context.Background(), userParameters)
	if err != nil {
		return err
	}

	wf, err := NewWorkflow(cfg, userParameters, logger)
	if err != nil {
		return err
	}

	eventHandler = NewHandler(wf, logger)
	logger.Info("init completed",
		"targetPipeline", userParameters.TargetPipeline,
		"amiParameterName", userParameters.AmiParameterName,
		"verifyImage", userParameters.VerifyImage,
		"recordBucket", userParameters.RecordBucket,
	)
	return nil
}

/**
 *	Triggered by the EventBridge rule on "EC2 Image Builder Image State Change".
 *
 *	Process Sequence :
 *	1. Drop events whose image status is not AVAILABLE
 *	2. Fetch the image of the build version ARN (resources[0]) from Image Builder
 *	3. Compare its source pipeline ARN with the tracked pipeline
 *	4. On a match, overwrite the AMI id SSM parameter with the first output AMI
 *	5. Otherwise finish without touching the parameter
 */
func HandleRequest(ctx context.Context, event events.CloudWatchEvent) (*workflow.Result, error) {
	if initErr != nil {
		return nil, fmt.Errorf("init() failed to complete: %w", initErr)
	}
	return eventHandler.HandleRequest(ctx, event)
}

func main() {
	lambda.Start(HandleRequest)
}
