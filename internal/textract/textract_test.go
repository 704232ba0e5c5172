package textract

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/textract-csv/internal/models"
	"github.com/feichai0017/textract-csv/pkg/logger"
)

type fakeAPI struct {
	started *textract.StartDocumentAnalysisInput
	pages   map[string]*textract.GetDocumentAnalysisOutput // keyed by token, "" for first
	tokens  []string
	failOn  string
}

func (f *fakeAPI) StartDocumentAnalysis(ctx context.Context, in *textract.StartDocumentAnalysisInput, _ ...func(*textract.Options)) (*textract.StartDocumentAnalysisOutput, error) {
	f.started = in
	return &textract.StartDocumentAnalysisOutput{JobId: aws.String("job-1")}, nil
}

func (f *fakeAPI) GetDocumentAnalysis(ctx context.Context, in *textract.GetDocumentAnalysisInput, _ ...func(*textract.Options)) (*textract.GetDocumentAnalysisOutput, error) {
	token := aws.ToString(in.NextToken)
	f.tokens = append(f.tokens, token)
	if token == f.failOn && f.failOn != "" {
		return nil, errors.New("throttled")
	}
	out, ok := f.pages[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return out, nil
}

func wordBlock(id, text string) types.Block {
	return types.Block{Id: aws.String(id), BlockType: types.BlockTypeWord, Text: aws.String(text), Page: aws.Int32(1)}
}

func newClient(api API) *Client {
	return New(api, Config{RoleARN: "arn:role", TopicARN: "arn:topic", MaxResults: 500}, logger.NewTestLogger())
}

func TestStartAnalysis(t *testing.T) {
	api := &fakeAPI{}
	jobID, err := newClient(api).StartAnalysis(context.Background(), "bucket", "uploads/a.pdf")

	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "bucket", aws.ToString(api.started.DocumentLocation.S3Object.Bucket))
	assert.Equal(t, "uploads/a.pdf", aws.ToString(api.started.DocumentLocation.S3Object.Name))
	assert.Equal(t, []types.FeatureType{types.FeatureTypeTables}, api.started.FeatureTypes)
	assert.Equal(t, "arn:topic", aws.ToString(api.started.NotificationChannel.SNSTopicArn))
	assert.Equal(t, "arn:role", aws.ToString(api.started.NotificationChannel.RoleArn))
}

func TestFetchAllFollowsTokensInOrder(t *testing.T) {
	api := &fakeAPI{pages: map[string]*textract.GetDocumentAnalysisOutput{
		"":   {JobStatus: types.JobStatusSucceeded, Blocks: []types.Block{wordBlock("a", "1")}, NextToken: aws.String("t1")},
		"t1": {JobStatus: types.JobStatusSucceeded, Blocks: []types.Block{wordBlock("b", "2"), wordBlock("c", "3")}, NextToken: aws.String("t2")},
		"t2": {JobStatus: types.JobStatusSucceeded, Blocks: []types.Block{wordBlock("d", "4")}},
	}}

	p := NewBlockPaginator(newClient(api), "job-1")
	blocks, err := FetchAll(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, []string{"", "t1", "t2"}, api.tokens)
	assert.Equal(t, 3, p.Pages())
	assert.False(t, p.HasMorePages())

	var ids []string
	for _, b := range blocks {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
}

func TestFetchAllAbortsOnPageError(t *testing.T) {
	api := &fakeAPI{
		pages: map[string]*textract.GetDocumentAnalysisOutput{
			"": {Blocks: []types.Block{wordBlock("a", "1")}, NextToken: aws.String("t1")},
		},
		failOn: "t1",
	}

	blocks, err := FetchAll(context.Background(), NewBlockPaginator(newClient(api), "job-1"))

	assert.Error(t, err)
	assert.Nil(t, blocks)
}

func TestGetAnalysisResultFailedJob(t *testing.T) {
	api := &fakeAPI{pages: map[string]*textract.GetDocumentAnalysisOutput{
		"": {JobStatus: types.JobStatusFailed, StatusMessage: aws.String("unsupported document")},
	}}

	_, err := newClient(api).GetAnalysisResult(context.Background(), "job-1", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported document")
}

func TestNextPageAfterLastPage(t *testing.T) {
	api := &fakeAPI{pages: map[string]*textract.GetDocumentAnalysisOutput{"": {}}}
	p := NewBlockPaginator(newClient(api), "job-1")

	_, err := p.NextPage(context.Background())
	require.NoError(t, err)
	_, err = p.NextPage(context.Background())
	assert.Error(t, err)
}

func TestConvertBlock(t *testing.T) {
	b := ConvertBlock(types.Block{
		Id:          aws.String("cell-1"),
		BlockType:   types.BlockTypeCell,
		Page:        aws.Int32(2),
		RowIndex:    aws.Int32(3),
		ColumnIndex: aws.Int32(4),
		Relationships: []types.Relationship{
			{Type: types.RelationshipTypeChild, Ids: []string{"w1", "w2"}},
		},
	})

	assert.Equal(t, models.Block{
		ID:          "cell-1",
		Type:        models.BlockTypeCell,
		Page:        2,
		RowIndex:    3,
		ColumnIndex: 4,
		Relationships: []models.Relationship{
			{Type: models.RelationshipChild, IDs: []string{"w1", "w2"}},
		},
	}, b)

	empty := ConvertBlock(types.Block{BlockType: types.BlockTypeWord})
	assert.Equal(t, models.Block{Type: models.BlockTypeWord}, empty)
}
