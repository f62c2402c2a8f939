package main

const (
	ImageBuilderEventSource    = "aws.imagebuilder"
	ImageStateChangeDetailType = "EC2 Image Builder Image State Change"
	DefaultRecordPrefix        = "ami-publications"
	DefaultLogLevel            = "INFO"
)

// ImageStateChangeDetail is the detail of an Image Builder state change event.
type ImageStateChangeDetail struct {
	PreviousState *ImageState `json:"previous-state,omitempty"`
	State         *ImageState `json:"state"`
}

type ImageState struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type UserParameters struct {
	FunctionRegion   string
	TargetPipeline   string
	AmiParameterName string
	VerifyImage      bool
	RecordBucket     string
	RecordPrefix     string
	EndpointUrl      string
	LogLevel         string
}
