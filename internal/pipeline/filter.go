// Package pipeline decides whether a finished build came from the tracked
// image pipeline.
package pipeline

import (
	"errors"
	"strings"
)

// ResourceType is the ARN resource segment of Image Builder pipelines.
const ResourceType = "image-pipeline"

// Target is the one pipeline this function tracks. It is fixed at deployment.
type Target struct {
	identity string
	exact    bool
}

// NewTarget builds a target from a pipeline name, an "image-pipeline/<name>"
// token, or a full pipeline ARN.
//
// A full ARN is compared for case-insensitive equality. Anything else falls
// back to substring matching on Token(identity), which is how the deployment
// matched before the full ARN was available to it.
func NewTarget(identity string) (Target, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return Target{}, errors.New("pipeline: empty target identity")
	}

	if strings.HasPrefix(identity, "arn:") {
		return Target{identity: identity, exact: true}, nil
	}
	return Target{identity: Token(identity)}, nil
}

// Matches reports whether sourcePipelineArn belongs to the target.
func (t Target) Matches(sourcePipelineArn string) bool {
	if t.exact {
		return strings.EqualFold(sourcePipelineArn, t.identity)
	}
	return IsTarget(sourcePipelineArn, t.identity)
}

// Exact reports whether the target compares full ARNs.
func (t Target) Exact() bool {
	return t.exact
}

func (t Target) String() string {
	return t.identity
}

// Token normalizes a pipeline name into "image-pipeline/<name>", lowercased.
// Values that already carry a resource segment are only lowercased.
func Token(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if strings.Contains(name, "/") {
		return name
	}
	return ResourceType + "/" + name
}

// IsTarget reports whether target occurs in sourcePipelineId, ignoring case.
//
// This is containment, not equality: a target "worker" also matches
// "image-pipeline/worker-staging". Configure a full ARN on the Target when
// pipelines share a name prefix.
func IsTarget(sourcePipelineId, target string) bool {
	if target == "" {
		return false
	}
	return strings.Contains(strings.ToLower(sourcePipelineId), strings.ToLower(target))
}
