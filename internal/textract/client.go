// Package textract starts asynchronous table analysis jobs on AWS Textract
// and pages through their results.
package textract

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/feichai0017/textract-csv/config"
	"github.com/feichai0017/textract-csv/internal/models"
	"github.com/feichai0017/textract-csv/pkg/awsconfig"
	"github.com/feichai0017/textract-csv/pkg/logger"
)

// API is the subset of the Textract client used here.
type API interface {
	StartDocumentAnalysis(ctx context.Context, params *textract.StartDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.StartDocumentAnalysisOutput, error)
	GetDocumentAnalysis(ctx context.Context, params *textract.GetDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.GetDocumentAnalysisOutput, error)
}

// Config selects what Textract extracts and where it reports completion.
type Config struct {
	RoleARN      string
	TopicARN     string
	FeatureTypes []types.FeatureType
	MaxResults   int32
}

// Page is one page of analysis results.
type Page struct {
	Blocks    []models.Block
	NextToken string
	Status    string
}

type Client struct {
	api    API
	config Config
	logger logger.Logger
}

// NewClient builds a Client from the process configuration.
func NewClient(ctx context.Context, awsSettings config.AWS, pipeline config.Pipeline, log logger.Logger) (*Client, error) {
	awsCfg, err := awsconfig.Load(ctx, awsSettings)
	if err != nil {
		return nil, err
	}

	api := textract.NewFromConfig(awsCfg, func(o *textract.Options) {
		if awsSettings.Endpoint != "" {
			o.BaseEndpoint = aws.String(awsSettings.Endpoint)
		}
	})

	return New(api, Config{
		RoleARN:    pipeline.ServiceRoleARN,
		TopicARN:   pipeline.NotificationTopicARN,
		MaxResults: pipeline.MaxResults,
	}, log), nil
}

// New wraps an existing Textract API. Feature types default to TABLES.
func New(api API, cfg Config, log logger.Logger) *Client {
	if len(cfg.FeatureTypes) == 0 {
		cfg.FeatureTypes = []types.FeatureType{types.FeatureTypeTables}
	}
	return &Client{
		api:    api,
		config: cfg,
		logger: log.Named("textract"),
	}
}

// StartAnalysis starts an asynchronous analysis of s3://bucket/key and
// returns the job id. Completion is published to the configured topic.
func (c *Client) StartAnalysis(ctx context.Context, bucket, key string) (string, error) {
	out, err := c.api.StartDocumentAnalysis(ctx, &textract.StartDocumentAnalysisInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{
				Bucket: aws.String(bucket),
				Name:   aws.String(key),
			},
		},
		FeatureTypes: c.config.FeatureTypes,
		NotificationChannel: &types.NotificationChannel{
			SNSTopicArn: aws.String(c.config.TopicARN),
			RoleArn:     aws.String(c.config.RoleARN),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to start document analysis: %w", err)
	}

	jobID := aws.ToString(out.JobId)
	c.logger.Info("Textract job started",
		logger.String("jobId", jobID),
		logger.String("bucket", bucket),
		logger.String("key", key),
	)
	return jobID, nil
}

// GetAnalysisResult fetches one page of results. An empty token requests
// the first page.
func (c *Client) GetAnalysisResult(ctx context.Context, jobID, token string) (Page, error) {
	in := &textract.GetDocumentAnalysisInput{JobId: aws.String(jobID)}
	if token != "" {
		in.NextToken = aws.String(token)
	}
	if c.config.MaxResults > 0 {
		in.MaxResults = aws.Int32(c.config.MaxResults)
	}

	out, err := c.api.GetDocumentAnalysis(ctx, in)
	if err != nil {
		return Page{}, fmt.Errorf("failed to get document analysis: %w", err)
	}
	if out.JobStatus == types.JobStatusFailed {
		return Page{}, fmt.Errorf("analysis job %s failed: %s", jobID, aws.ToString(out.StatusMessage))
	}

	page := Page{
		Blocks:    make([]models.Block, 0, len(out.Blocks)),
		NextToken: aws.ToString(out.NextToken),
		Status:    string(out.JobStatus),
	}
	for _, b := range out.Blocks {
		page.Blocks = append(page.Blocks, ConvertBlock(b))
	}
	return page, nil
}
