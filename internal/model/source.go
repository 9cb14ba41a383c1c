package model

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// Source откуда читаются веса модели
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// FileSource веса в локальном файле
type FileSource struct {
	Path string
}

// Fetch читает файл целиком
func (f FileSource) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file: %w", err)
	}
	return data, nil
}

func (f FileSource) String() string {
	return f.Path
}

// S3Source веса в объекте S3
type S3Source struct {
	Bucket string
	Key    string
	client s3iface.S3API
}

// NewS3Source создает источник с клиентом для указанного региона
func NewS3Source(bucket, key, region string) (*S3Source, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &S3Source{Bucket: bucket, Key: key, client: s3.New(sess)}, nil
}

// Fetch скачивает объект
func (s *S3Source) Fetch(ctx context.Context) ([]byte, error) {
	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download weights: %w", err)
	}
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights: %w", err)
	}
	return content, nil
}

func (s *S3Source) String() string {
	return "s3://" + s.Bucket + "/" + s.Key
}

// ParseSource разбирает путь к весам: s3://bucket/key или путь к файлу
func ParseSource(location, region string) (Source, error) {
	if location == "" {
		return nil, fmt.Errorf("weights location is empty")
	}
	if !strings.HasPrefix(location, "s3://") {
		return FileSource{Path: location}, nil
	}

	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid S3 location %q, expected s3://bucket/key", location)
	}
	return NewS3Source(bucket, key, region)
}
