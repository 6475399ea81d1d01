package fulfillment

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// Presigner produces time-limited download URLs for private objects.
type Presigner interface {
	PresignDownload(key string, expires time.Duration) (string, error)
}

// S3Presigner signs GET URLs against one bucket.
type S3Presigner struct {
	s3     s3iface.S3API
	bucket string
}

// NewS3Presigner creates a presigner with its own AWS session.
// Credentials come from the environment per the SDK's default chain.
func NewS3Presigner(region, bucket string) (*S3Presigner, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &S3Presigner{s3: s3.New(sess), bucket: bucket}, nil
}

// PresignDownload returns a signed GET URL for key valid for expires.
func (p *S3Presigner) PresignDownload(key string, expires time.Duration) (string, error) {
	req, _ := p.s3.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(expires)
	if err != nil {
		return "", fmt.Errorf("presign s3 object %s: %w", key, err)
	}
	return url, nil
}
