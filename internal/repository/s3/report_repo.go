package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/courtcase/financial-analysis/internal/config"
	"github.com/courtcase/financial-analysis/internal/domain"
)

// ReportRepository archives analysis run artifacts to S3 so each run's
// result and the summary it was computed against survive for discovery.
type ReportRepository struct {
	client *s3.Client
	bucket string
}

// NewReportRepository creates a new S3 report repository
func NewReportRepository(ctx context.Context, cfg appConfig.S3Config) (*ReportRepository, error) {
	// Custom resolver for MinIO/Localstack support
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				PartitionID:   "aws",
				URL:           cfg.Endpoint,
				SigningRegion: cfg.Region,
			}, nil
		}
		// Fall back to default resolution when no custom endpoint is set
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithEndpointResolverWithOptions(customResolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true // Required for MinIO
	})

	return &ReportRepository{
		client: client,
		bucket: cfg.ReportsBucket,
	}, nil
}

// analysisArtifact is the archived JSON document for one run
type analysisArtifact struct {
	Result  *domain.AnalysisResult   `json:"result"`
	Summary *domain.FinancialSummary `json:"summary"`
}

// ArchiveAnalysis uploads one run's result and summary snapshot
func (r *ReportRepository) ArchiveAnalysis(ctx context.Context, result *domain.AnalysisResult, summary *domain.FinancialSummary) error {
	data, err := json.Marshal(analysisArtifact{Result: result, Summary: summary})
	if err != nil {
		return fmt.Errorf("failed to marshal analysis artifact: %w", err)
	}

	// Key format: cases/{case_id}/analysis/{run_id}.json
	key := fmt.Sprintf("cases/%s/analysis/%s.json", result.CaseID, result.RunID)

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload analysis artifact to s3: %w", err)
	}
	return nil
}
