package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"carbon-nft-system/internal/config"
	"carbon-nft-system/pkg/errors"
	"carbon-nft-system/pkg/logger"
)

type Client struct {
	chainCfg *config.ChainConfig
	client   *ethclient.Client
}

// NewClient 创建指定链的区块链客户端
func NewClient(chainCfg *config.ChainConfig) (*Client, error) {
	client, err := ethclient.Dial(chainCfg.RPCURL)
	if err != nil {
		return nil, errors.New(errors.ErrRPConnect,
			fmt.Sprintf("failed to connect rpc: %s", chainCfg.RPCURL), err)
	}

	return &Client{
		chainCfg: chainCfg,
		client:   client,
	}, nil
}

// Close 关闭区块链客户端连接
func (c *Client) Close() {
	c.client.Close()
}

// GetLatestBlockNumber 获取区块链最新区块号
func (c *Client) GetLatestBlockNumber(ctx context.Context) (int64, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, errors.New(errors.ErrBlockFetch, "failed to fetch latest block", err)
	}
	return header.Number.Int64(), nil
}

// GetConfirmBlockNumber 应用确认区块阈值后的最新区块号
func (c *Client) GetConfirmBlockNumber(ctx context.Context) (int64, error) {
	latest, err := c.GetLatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	confirmed := latest - int64(c.chainCfg.ConfirmationBlocks)
	if confirmed < 0 {
		confirmed = 0
	}

	return confirmed, nil
}

// GetContractLogs 获取指定区块范围内两个合约的全部事件日志
// 注意：RPC节点通常限制每次请求的区块跨度
func (c *Client) GetContractLogs(ctx context.Context, startBlock, endBlock int64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(startBlock),
		ToBlock:   big.NewInt(endBlock),
		Addresses: []common.Address{
			common.HexToAddress(c.chainCfg.NFTAddress),
			common.HexToAddress(c.chainCfg.MarketplaceAddress),
		},
		Topics: [][]common.Hash{eventSignatures()},
	}

	logs, err := c.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, errors.New(errors.ErrEventParse, "failed to filter contract logs", err)
	}

	logger.WithFields(map[string]interface{}{
		"chain_id":    c.chainCfg.ID,
		"start_block": startBlock,
		"end_block":   endBlock,
		"logs_count":  len(logs),
	}).Debug("获取合约事件日志")

	return logs, nil
}

// GetBlockTimestamp 获取区块的时间戳
func (c *Client) GetBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	header, err := c.client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return time.Time{}, errors.New(errors.ErrBlockFetch,
			fmt.Sprintf("failed to fetch block %d", blockNumber), err)
	}
	return time.Unix(int64(header.Time), 0), nil
}
