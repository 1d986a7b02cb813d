package fetch

import (
	"context"
	"fmt"

	"github.com/eak1mov/go-libmap/tile"
)

type readerFetcher struct {
	r tile.Reader
}

// FromReader adapts a local tile.Reader (e.g. xyz.Reader) to tile.Fetcher.
// Empty tile data is reported as ErrNotFound.
func FromReader(r tile.Reader) tile.Fetcher {
	if f, ok := r.(tile.Fetcher); ok {
		return f
	}
	return readerFetcher{r}
}

func (f readerFetcher) Fetch(ctx context.Context, index tile.Index) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := f.r.ReadTile(index)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, index)
	}
	return data, nil
}
