// Package workflow publishes the AMI of a finished image build when the build
// came from the tracked pipeline.
//
// A run walks START -> RESOLVING -> DECIDING and then either
// PUBLISHING -> DONE or SKIPPED -> DONE. A failed lookup or write ends in
// FAILED. Nothing is retried here and nothing is kept between runs; the
// published parameter is the only shared state.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"andrewsaputra/ami-publisher-lambda/internal/build"
	"andrewsaputra/ami-publisher-lambda/internal/pipeline"
	"andrewsaputra/ami-publisher-lambda/internal/record"
)

type Resolver interface {
	Resolve(ctx context.Context, ref string) (*build.Metadata, error)
}

type Publisher interface {
	Publish(ctx context.Context, name, value string) error
}

type Recorder interface {
	Record(ctx context.Context, p record.Publication) error
}

// Result summarizes one run. Path lists every state visited, START included.
type Result struct {
	State             State   `json:"state"`
	Path              []State `json:"path"`
	BuildReference    string  `json:"buildReference"`
	SourcePipelineArn string  `json:"sourcePipelineArn,omitempty"`
	ArtifactID        string  `json:"artifactId,omitempty"`
	Published         bool    `json:"published"`
	Error             string  `json:"error,omitempty"`
}

type Workflow struct {
	resolver      Resolver
	publisher     Publisher
	recorder      Recorder
	target        pipeline.Target
	parameterName string
	logger        *slog.Logger
}

type Option func(*Workflow)

// WithRecorder stores a publication record after every successful write.
// Record failures are logged only.
func WithRecorder(r Recorder) Option {
	return func(w *Workflow) {
		w.recorder = r
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// New returns a Workflow tracking target and writing to parameterName.
func New(resolver Resolver, publisher Publisher, target pipeline.Target, parameterName string, opts ...Option) (*Workflow, error) {
	if resolver == nil || publisher == nil {
		return nil, errors.New("workflow: resolver and publisher are required")
	}
	if target.String() == "" {
		return nil, errors.New("workflow: target pipeline is required")
	}
	if strings.TrimSpace(parameterName) == "" {
		return nil, errors.New("workflow: parameter name is required")
	}

	w := &Workflow{
		resolver:      resolver,
		publisher:     publisher,
		target:        target,
		parameterName: parameterName,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

type run struct {
	event    build.Event
	state    State
	metadata *build.Metadata
	err      error
	result   *Result
}

// Run processes ev to a terminal state. The returned error is the
// *build.ResolutionError or *build.PublishError that ended the run in FAILED.
func (w *Workflow) Run(ctx context.Context, ev build.Event) (*Result, error) {
	r := &run{
		event: ev,
		state: StateStart,
		result: &Result{
			State:          StateStart,
			Path:           []State{StateStart},
			BuildReference: ev.BuildReference,
		},
	}
	logger := w.logger.With("eventId", ev.ID, "buildReference", ev.BuildReference)

	for !r.state.Terminal() {
		signal := w.step(ctx, r)
		next, err := Transition(r.state, signal)
		if err != nil {
			return r.result, err
		}

		logger.Debug("transition", "from", r.state, "signal", signal, "to", next)
		r.state = next
		r.result.State = next
		r.result.Path = append(r.result.Path, next)
	}

	if r.err != nil {
		r.result.Error = r.err.Error()
		logger.Error("workflow failed", "path", r.result.Path, "error", r.err)
		return r.result, r.err
	}

	logger.Info("workflow done",
		"path", r.result.Path,
		"published", r.result.Published,
		"sourcePipelineArn", r.result.SourcePipelineArn,
		"artifactId", r.result.ArtifactID,
	)
	return r.result, nil
}

func (w *Workflow) step(ctx context.Context, r *run) Signal {
	ref := r.event.BuildReference

	switch r.state {
	case StateStart:
		if strings.TrimSpace(ref) == "" {
			r.err = build.NewResolutionError(ref, build.ErrInvalidReference)
			return SignalRejected
		}
		return SignalAccepted

	case StateResolving:
		metadata, err := w.resolver.Resolve(ctx, ref)
		if err != nil {
			r.err = asResolutionError(ref, err)
			return SignalResolveFailed
		}
		if metadata.PrimaryArtifactID() == "" {
			r.err = build.NewResolutionError(ref, build.ErrNoArtifacts)
			return SignalResolveFailed
		}
		r.metadata = metadata
		r.result.SourcePipelineArn = metadata.SourcePipelineArn
		r.result.ArtifactID = metadata.PrimaryArtifactID()
		return SignalResolved

	case StateDeciding:
		if w.target.Matches(r.metadata.SourcePipelineArn) {
			return SignalMatched
		}
		return SignalNotMatched

	case StatePublishing:
		value := r.metadata.PrimaryArtifactID()
		if err := w.publisher.Publish(ctx, w.parameterName, value); err != nil {
			r.err = asPublishError(w.parameterName, err)
			return SignalPublishFailed
		}
		r.result.Published = true
		w.record(ctx, r)
		return SignalPublished

	case StateSkipped:
		return SignalFinished
	}

	return Signal(fmt.Sprintf("unhandled_%s", strings.ToLower(string(r.state))))
}

func (w *Workflow) record(ctx context.Context, r *run) {
	if w.recorder == nil {
		return
	}

	err := w.recorder.Record(ctx, record.Publication{
		ParameterName:     w.parameterName,
		Value:             r.metadata.PrimaryArtifactID(),
		BuildReference:    r.event.BuildReference,
		SourcePipelineArn: r.metadata.SourcePipelineArn,
	})
	if err != nil {
		w.logger.Warn("failed to record publication", "buildReference", r.event.BuildReference, "error", err)
	}
}

func asResolutionError(ref string, err error) error {
	if build.IsResolutionError(err) {
		return err
	}
	return build.NewResolutionError(ref, err)
}

func asPublishError(name string, err error) error {
	if build.IsPublishError(err) {
		return err
	}
	return build.NewPublishError(name, err)
}
