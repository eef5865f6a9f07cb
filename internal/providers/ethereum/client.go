package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vehemi/marketplace-indexer/internal/adapter"
	"github.com/vehemi/marketplace-indexer/internal/domain"
)

// Event signatures
var (
	// NFTListed(uint256 indexed tokenId, address indexed seller, uint256 price, address paymentToken, uint64 duration)
	nftListedEventSignature = crypto.Keccak256Hash([]byte("NFTListed(uint256,address,uint256,address,uint64)"))

	// NFTSold(uint256 indexed tokenId, address indexed seller, address indexed buyer, uint256 price, address paymentToken, uint256 fee)
	nftSoldEventSignature = crypto.Keccak256Hash([]byte("NFTSold(uint256,address,address,uint256,address,uint256)"))

	// ListingCancelled(uint256 indexed tokenId, address indexed seller)
	listingCancelledEventSignature = crypto.Keccak256Hash([]byte("ListingCancelled(uint256,address)"))

	// ERC721 Transfer(address indexed from, address indexed to, uint256 indexed tokenId)
	// Shares the signature hash with ERC20 Transfer, which has only 3 topics
	transferEventSignature = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

	// LockCreated(uint256 indexed tokenId, address indexed owner, uint256 amount, uint64 lockStart, uint64 lockEnd)
	lockCreatedEventSignature = crypto.Keccak256Hash([]byte("LockCreated(uint256,address,uint256,uint64,uint64)"))
)

// MarketplaceEventSignatures returns the topic hashes the emitter subscribes to
func MarketplaceEventSignatures() []common.Hash {
	return []common.Hash{
		nftListedEventSignature,
		nftSoldEventSignature,
		listingCancelledEventSignature,
	}
}

// VeNFTEventSignatures returns the topic hashes emitted by the veHEMI contract
func VeNFTEventSignatures() []common.Hash {
	return []common.Hash{
		transferEventSignature,
		lockCreatedEventSignature,
	}
}

// EthereumClient wraps an RPC connection to a Hemi node and decodes the
// marketplace and veHEMI contract logs into normalized events
type EthereumClient interface {
	// ParseEventLog parses a log into a normalized marketplace event.
	// Returns (nil, nil) for logs that are recognized but not indexed,
	// such as ERC20 transfers sharing the Transfer signature.
	ParseEventLog(ctx context.Context, vLog types.Log) (*domain.MarketplaceEvent, error)

	// SubscribeFilterLogs subscribes to filter logs
	SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)

	// FilterLogs retrieves historical logs matching the query
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)

	// HeaderByNumber returns a header by number
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)

	// BlockTimestamp returns the timestamp of a block
	BlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)

	// Close closes the connection
	Close()
}

type ethereumClient struct {
	chainID domain.Chain
	client  adapter.EthClient
	clock   adapter.Clock
}

func NewClient(chainID domain.Chain, client adapter.EthClient, clock adapter.Clock) EthereumClient {
	return &ethereumClient{chainID: chainID, client: client, clock: clock}
}

// SubscribeFilterLogs subscribes to filter logs
func (c *ethereumClient) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return c.client.SubscribeFilterLogs(ctx, query, ch)
}

// FilterLogs retrieves historical logs matching the query
func (c *ethereumClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return c.client.FilterLogs(ctx, query)
}

// HeaderByNumber returns a header by number
func (c *ethereumClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.client.HeaderByNumber(ctx, number)
}

// BlockTimestamp returns the timestamp of a block
func (c *ethereumClient) BlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	block, err := c.client.BlockByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get block %d: %w", blockNumber, err)
	}
	return c.clock.Unix(int64(block.Time()), 0), nil //nolint:gosec,G115 // block.Time() returns a uint64 from geth which is safe to cast
}

// tokenIDFromTopic reads an indexed uint256 token id, rejecting values
// that do not fit the indexer's uint64 key space
func tokenIDFromTopic(vLog types.Log, topic int) (uint64, error) {
	v := new(big.Int).SetBytes(vLog.Topics[topic].Bytes())
	if !v.IsUint64() {
		return 0, domain.NewDecodeError(vLog.TxHash.Hex(), vLog.Index, "token id %s overflows uint64", v.String())
	}
	return v.Uint64(), nil
}

// ParseEventLog parses a log into a normalized marketplace event
func (c *ethereumClient) ParseEventLog(ctx context.Context, vLog types.Log) (*domain.MarketplaceEvent, error) {
	if len(vLog.Topics) == 0 {
		return nil, domain.NewDecodeError(vLog.TxHash.Hex(), vLog.Index, "log has no topics")
	}

	timestamp, err := c.BlockTimestamp(ctx, vLog.BlockNumber)
	if err != nil {
		return nil, err
	}

	event := &domain.MarketplaceEvent{
		Chain:           c.chainID,
		ContractAddress: vLog.Address.Hex(),
		TxHash:          vLog.TxHash.Hex(),
		LogIndex:        vLog.Index,
		BlockNumber:     vLog.BlockNumber,
		BlockHash:       vLog.BlockHash.Hex(),
		Timestamp:       timestamp,
	}

	switch vLog.Topics[0] {
	case nftListedEventSignature:
		// NFTListed(uint256 indexed tokenId, address indexed seller, uint256 price, address paymentToken, uint64 duration)
		if len(vLog.Topics) != 3 {
			return nil, domain.NewDecodeError(vLog.TxHash.Hex(), vLog.Index, "invalid NFTListed event: expected 3 topics, got %d", len(vLog.Topics))
		}
		if len(vLog.Data) < 96 {
			return nil, domain.NewDecodeError(vLog.TxHash.Hex(), vLog.Index, "invalid NFTListed event: insufficient data")
		}

		event.EventName = domain.EventNFTListed
		if event.TokenID, err = tokenIDFromTopic(vLog, 1); err != nil {
			return nil, err
		}
		seller := common.BytesToAddress(vLog.Topics[2].Bytes()).Hex()
		event.Seller = &seller
		event.PriceWei = new(big.Int).SetBytes(vLog.Data[0:32]).String()
		paymentToken := common.BytesToAddress(vLog.Data[32:64]).Hex()
		event.PaymentToken = &paymentToken
		event.DurationSeconds = new(big.Int).SetBytes(vLog.Data[64:96]).Uint64()

	case nftSoldEventSignature:
		// NFTSold(uint256 indexed tokenId, address indexed seller, address indexed buyer, uint256 price, address paymentToken, uint256 fee)
		if len(vLog.Topics) != 4 {
			return nil, domain.NewDecodeError(vLog.TxHash.Hex(), vLog.Index, "invalid NFTSold event: expected 4 topics, got %d", len(vLog.Topics))
		}
		if len(vLog.Data) < 96 {
			return nil, domain.NewDecodeError(vLog.TxHash.Hex(), vLog.Index, "invalid NFTSold event: insufficient data")
		}

		event.EventName = domain.EventNFTSold
		if event.TokenID, err = tokenIDFromTopic(vLog, 1); err != nil {
			return nil, err
		}
		seller := common.BytesToAddress(vLog.Topics[2].Bytes()).Hex()
		event.Seller = &seller
		buyer := common.BytesToAddress(vLog.Topics[3].Bytes()).Hex()
		event.Buyer = &buyer
		event.PriceWei = new(big.Int).SetBytes(vLog.Data[0:32]).String()
		paymentToken := common.BytesToAddress(vLog.Data[32:64]).Hex()
		event.PaymentToken = &paymentToken
		event.FeeWei = new(big.Int).SetBytes(vLog.Data[64:96]).String()

	case listingCancelledEventSignature:
		// ListingCancelled(uint256 indexed tokenId, address indexed seller)
		if len(vLog.Topics) != 3 {
			return nil, domain.NewDecodeError(vLog.TxHash.Hex(), vLog.Index, "invalid ListingCancelled event: expected 3 topics, got %d", len(vLog.Topics))
		}

		event.EventName = domain.EventListingCancelled
		if event.TokenID, err = tokenIDFromTopic(vLog, 1); err != nil {
			return nil, err
		}
		seller := common.BytesToAddress(vLog.Topics[2].Bytes()).Hex()
		event.Seller = &seller

	case transferEventSignature:
		// ERC20 Transfer shares this signature but carries only 3 topics
		if len(vLog.Topics) == 3 {
			return nil, nil // skip ERC20 transfer events
		}
		if len(vLog.Topics) != 4 {
			return nil, domain.NewDecodeError(vLog.TxHash.Hex(), vLog.Index, "invalid Transfer event: expected 3 or 4 topics, got %d", len(vLog.Topics))
		}

		// ERC721 Transfer(address indexed from, address indexed to, uint256 indexed tokenId)
		event.EventName = domain.EventTransfer
		from := common.BytesToAddress(vLog.Topics[1].Bytes()).Hex()
		event.FromAddress = &from
		to := common.BytesToAddress(vLog.Topics[2].Bytes()).Hex()
		event.ToAddress = &to
		if event.TokenID, err = tokenIDFromTopic(vLog, 3); err != nil {
			return nil, err
		}

	case lockCreatedEventSignature:
		// LockCreated(uint256 indexed tokenId, address indexed owner, uint256 amount, uint64 lockStart, uint64 lockEnd)
		if len(vLog.Topics) != 3 {
			return nil, domain.NewDecodeError(vLog.TxHash.Hex(), vLog.Index, "invalid LockCreated event: expected 3 topics, got %d", len(vLog.Topics))
		}
		if len(vLog.Data) < 96 {
			return nil, domain.NewDecodeError(vLog.TxHash.Hex(), vLog.Index, "invalid LockCreated event: insufficient data")
		}

		event.EventName = domain.EventLockCreated
		if event.TokenID, err = tokenIDFromTopic(vLog, 1); err != nil {
			return nil, err
		}
		owner := common.BytesToAddress(vLog.Topics[2].Bytes()).Hex()
		event.ToAddress = &owner
		event.LockedAmountWei = new(big.Int).SetBytes(vLog.Data[0:32]).String()
		lockStart := c.clock.Unix(new(big.Int).SetBytes(vLog.Data[32:64]).Int64(), 0)
		event.LockStart = &lockStart
		lockEnd := c.clock.Unix(new(big.Int).SetBytes(vLog.Data[64:96]).Int64(), 0)
		event.LockEnd = &lockEnd

	default:
		return nil, domain.NewDecodeError(vLog.TxHash.Hex(), vLog.Index, "unknown event signature: %s", vLog.Topics[0].Hex())
	}

	return event, nil
}

// Close closes the connection
func (c *ethereumClient) Close() {
	c.client.Close()
}
