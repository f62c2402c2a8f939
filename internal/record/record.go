// Package record keeps an S3 trail of every AMI id written to the parameter.
package record

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// Publication describes one successful parameter write.
type Publication struct {
	ParameterName     string    `json:"parameterName"`
	Value             string    `json:"value"`
	BuildReference    string    `json:"buildReference"`
	SourcePipelineArn string    `json:"sourcePipelineArn"`
	PublishedAt       time.Time `json:"publishedAt"`
}

// Recorder writes publications as JSON objects under bucket/prefix.
type Recorder struct {
	client S3API
	bucket string
	prefix string
	now    func() time.Time
}

func NewRecorder(client S3API, bucket, prefix string) *Recorder {
	return &Recorder{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}
}

// Key returns the object key used for value.
func (r *Recorder) Key(value string) string {
	return path.Join(r.prefix, value+".json")
}

// Record stores p. PublishedAt is filled in when zero.
func (r *Recorder) Record(ctx context.Context, p Publication) error {
	if p.PublishedAt.IsZero() {
		p.PublishedAt = r.now().UTC()
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode publication: %w", err)
	}

	key := r.Key(p.Value)
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3.PutObject %s/%s: %w", r.bucket, key, err)
	}
	return nil
}
