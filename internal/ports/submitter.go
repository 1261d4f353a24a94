package ports

import (
	"context"

	"github.com/alejandrodnm/automerger/internal/domain"
)

// MergeSubmitter sends convert and merge operations on behalf of the proxy
// wallet. The returned Submission is filled even on error so it can be
// journaled.
type MergeSubmitter interface {
	SubmitConvert(ctx context.Context, req domain.ConvertRequest) (domain.Submission, error)
	SubmitMerge(ctx context.Context, req domain.MergeRequest) (domain.Submission, error)
}
