// Package build holds the data exchanged between the image state change
// handler, the metadata resolver and the parameter publisher.
package build

import "time"

// Status is the Image Builder image status carried by a state change event.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusCreating     Status = "CREATING"
	StatusBuilding     Status = "BUILDING"
	StatusTesting      Status = "TESTING"
	StatusDistributing Status = "DISTRIBUTING"
	StatusIntegrating  Status = "INTEGRATING"
	StatusAvailable    Status = "AVAILABLE"
	StatusCancelled    Status = "CANCELLED"
	StatusFailed       Status = "FAILED"
	StatusDeprecated   Status = "DEPRECATED"
	StatusDeleted      Status = "DELETED"
)

// Event is a single build completion notification. BuildReference is the
// image build version ARN and is opaque to everything but the resolver.
type Event struct {
	ID             string
	Region         string
	Time           time.Time
	BuildReference string
	Status         Status
}

// Available reports whether the build reached the AVAILABLE state.
func (e Event) Available() bool {
	return e.Status == StatusAvailable
}

// Metadata is what the resolver learns about one build. ArtifactIDs keeps the
// distribution order; Regions[i] is the region of ArtifactIDs[i].
type Metadata struct {
	ImageArn          string
	SourcePipelineArn string
	ArtifactIDs       []string
	Regions           []string
}

// PrimaryArtifactID returns the canonical AMI id, which is the first
// distribution output. Empty when the build produced nothing.
func (m *Metadata) PrimaryArtifactID() string {
	if m == nil || len(m.ArtifactIDs) == 0 {
		return ""
	}
	return m.ArtifactIDs[0]
}
