package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/logger"
	"github.com/vehemi/marketplace-indexer/internal/messaging"
)

// Config holds the configuration for the Hemi event subscription
type Config struct {
	WebSocketURL        string       // WebSocket URL of a Hemi node
	ChainID             domain.Chain // e.g. "eip155:43111" for Hemi mainnet
	MarketplaceContract string       // escrow marketplace contract address
	VeNFTContract       string       // veHEMI position NFT contract address
}

type ethSubscriber struct {
	client    EthereumClient
	chainID   domain.Chain
	contracts []common.Address
}

// NewSubscriber creates a new Hemi event subscriber watching the
// marketplace and veHEMI contracts
func NewSubscriber(cfg Config, client EthereumClient) messaging.Subscriber {
	return &ethSubscriber{
		client:  client,
		chainID: cfg.ChainID,
		contracts: []common.Address{
			common.HexToAddress(cfg.MarketplaceContract),
			common.HexToAddress(cfg.VeNFTContract),
		},
	}
}

// SubscribeEvents subscribes to marketplace and veHEMI logs
func (s *ethSubscriber) SubscribeEvents(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
	topics := append(MarketplaceEventSignatures(), VeNFTEventSignatures()...)
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: s.contracts,
		Topics:    [][]common.Hash{topics},
	}

	logs := make(chan types.Log)
	sub, err := s.client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSubscriptionFailed, err)
	}
	defer func() {
		logger.InfoCtx(ctx, "Unsubscribing from chain event logs")
		sub.Unsubscribe()
		logger.InfoCtx(ctx, "Unsubscribed from chain event logs")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("subscription error: %w", err)
		case vLog := <-logs:
			event, err := s.client.ParseEventLog(ctx, vLog)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorCtx(ctx, err, zap.String("message", "Error parsing log"))
				continue
			}

			if event == nil {
				continue
			}

			if err := handler(event); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("message", "Error handling event"))
			}
		}
	}
}

// GetLatestBlock returns the latest block number
func (s *ethSubscriber) GetLatestBlock(ctx context.Context) (uint64, error) {
	header, err := s.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return header.Number.Uint64(), nil
}

// Close closes the connection
func (s *ethSubscriber) Close() {
	if s.client == nil {
		return
	}

	s.client.Close()
	logger.Info("Hemi WebSocket connection closed")
}
