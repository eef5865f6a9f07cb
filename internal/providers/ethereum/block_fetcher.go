package ethereum

import (
	"context"
	"fmt"

	"github.com/vehemi/marketplace-indexer/internal/adapter"
	"github.com/vehemi/marketplace-indexer/internal/block"
)

// hemiBlockFetcher implements block.BlockFetcher against a Hemi RPC node
type hemiBlockFetcher struct {
	client adapter.EthClient
}

func NewBlockFetcher(client adapter.EthClient) block.BlockFetcher {
	return &hemiBlockFetcher{client: client}
}

// FetchLatestBlock fetches the latest block number
func (f *hemiBlockFetcher) FetchLatestBlock(ctx context.Context) (uint64, error) {
	header, err := f.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return header.Number.Uint64(), nil
}
