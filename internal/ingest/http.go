package ingest

import (
	"context"

	"github.com/AngelCh415/dmlab/internal/utils"
)

// GetJSONWithRetry decodes url into dst, retrying transport errors and non-2xx
// responses according to b.
func GetJSONWithRetry(ctx context.Context, c HTTPClient, url string, dst any, b utils.Backoff) error {
	return b.Do(ctx, func(int) error {
		return getJSON(ctx, c, url, dst)
	})
}
