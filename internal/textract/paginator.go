package textract

import (
	"context"
	"errors"

	"github.com/feichai0017/textract-csv/internal/models"
)

// ResultFetcher returns one page of analysis results for a job.
type ResultFetcher interface {
	GetAnalysisResult(ctx context.Context, jobID, token string) (Page, error)
}

// BlockPaginator walks the result pages of one job, following NextToken
// until the service stops returning one. It mirrors the SDK paginators.
type BlockPaginator struct {
	fetcher   ResultFetcher
	jobID     string
	nextToken string
	firstPage bool
	pages     int
}

func NewBlockPaginator(fetcher ResultFetcher, jobID string) *BlockPaginator {
	return &BlockPaginator{
		fetcher:   fetcher,
		jobID:     jobID,
		firstPage: true,
	}
}

// HasMorePages reports whether NextPage should be called again.
func (p *BlockPaginator) HasMorePages() bool {
	return p.firstPage || p.nextToken != ""
}

// NextPage fetches the next page of blocks.
func (p *BlockPaginator) NextPage(ctx context.Context) ([]models.Block, error) {
	if !p.HasMorePages() {
		return nil, errors.New("no more pages available")
	}

	page, err := p.fetcher.GetAnalysisResult(ctx, p.jobID, p.nextToken)
	if err != nil {
		return nil, err
	}

	p.firstPage = false
	p.nextToken = page.NextToken
	p.pages++
	return page.Blocks, nil
}

// Pages is the number of pages fetched so far.
func (p *BlockPaginator) Pages() int {
	return p.pages
}

// FetchAll drains p and returns every block in fetch order. Any page error
// aborts the whole fetch.
func FetchAll(ctx context.Context, p *BlockPaginator) ([]models.Block, error) {
	var blocks []models.Block
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, page...)
	}
	return blocks, nil
}
