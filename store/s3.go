package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/nemo-facility/nemo-app-drive/drive"
	"github.com/nemo-facility/nemo-app-drive/records"
)

// S3Store keeps a table as a CSV object in an S3 bucket.
type S3Store struct {
	Bucket string
	Key    string
	s3     s3iface.S3API
}

var _ Store = (*S3Store)(nil)

func NewS3Store(client s3iface.S3API, bucket, key string) *S3Store {
	return &S3Store{
		Bucket: bucket,
		Key:    key,
		s3:     client,
	}
}

func (s *S3Store) Read(ctx context.Context) (*records.Table, error) {
	out, err := s.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})

	var aerr awserr.Error
	if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to retrieve '%v': %w", s, err)
	}

	defer out.Body.Close()

	return records.ReadCSV(out.Body)
}

func (s *S3Store) Write(ctx context.Context, table *records.Table) error {
	var b bytes.Buffer
	if err := records.WriteCSV(&b, table); err != nil {
		return err
	}

	_, err := s.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.Key),
		ContentType: aws.String(drive.CSVMimeType),
		Body:        bytes.NewReader(b.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("failed to write '%v': %w", s, err)
	}

	return nil
}

func (s *S3Store) String() string {
	return fmt.Sprintf("s3://%s/%s", s.Bucket, s.Key)
}
