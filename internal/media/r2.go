package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"cvlex/internal/providers"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

type R2Config struct {
	AccountID  string
	Bucket     string
	AccessKey  string
	SecretKey  string
	PublicBase string
	Prefix     string
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Store uploads artifacts to a Cloudflare R2 (S3-compatible) bucket and
// returns URLs under PublicBase.
type R2Store struct {
	cfg    R2Config
	client objectPutter
	log    *zap.Logger
}

func NewR2Store(ctx context.Context, cfg R2Config, log *zap.Logger) (*R2Store, error) {
	if cfg.AccountID == "" || cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("r2 media store requires account id, bucket, access key and secret key")
	}
	if cfg.PublicBase == "" {
		return nil, fmt.Errorf("r2 media store requires a public base url")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load r2 config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	})
	return newR2Store(cfg, client, log), nil
}

func newR2Store(cfg R2Config, client objectPutter, log *zap.Logger) *R2Store {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.PublicBase = strings.TrimRight(cfg.PublicBase, "/")
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &R2Store{cfg: cfg, client: client, log: log}
}

func (s *R2Store) Put(ctx context.Context, key string, m providers.Media) (Artifact, error) {
	if !validKey(key) {
		return Artifact{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	objectKey := key
	if s.cfg.Prefix != "" {
		objectKey = s.cfg.Prefix + "/" + key
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(m.Data),
		ContentType: aws.String(m.ContentType),
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("upload media %s: %w", objectKey, err)
	}
	s.log.Debug("media uploaded", zap.String("bucket", s.cfg.Bucket), zap.String("key", objectKey))
	return Artifact{
		Key:         objectKey,
		URL:         s.cfg.PublicBase + "/" + objectKey,
		ContentType: m.ContentType,
		Size:        len(m.Data),
	}, nil
}
