package blockchain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"carbon-nft-system/internal/models"
	"carbon-nft-system/pkg/errors"
)

// 合约事件签名
var (
	sigUserRegistered   = crypto.Keccak256Hash([]byte("UserRegistered(address,uint8)"))
	sigTokenMinted      = crypto.Keccak256Hash([]byte("TokenMinted(uint256,address,uint8,uint256,string,string)"))
	sigGradeUpdated     = crypto.Keccak256Hash([]byte("GradeUpdated(uint256,address,uint8,uint256,string)"))
	sigTokenEndorsed    = crypto.Keccak256Hash([]byte("TokenEndorsed(uint256,address)"))
	sigTokenDeactivated = crypto.Keccak256Hash([]byte("TokenDeactivated(uint256,address)"))
	sigTokenListed      = crypto.Keccak256Hash([]byte("TokenListed(uint256,address,uint256)"))
	sigListingCancelled = crypto.Keccak256Hash([]byte("ListingCancelled(uint256,address)"))
	sigTokenSold        = crypto.Keccak256Hash([]byte("TokenSold(uint256,address,address,uint256)"))
)

var (
	uint8Type, _   = abi.NewType("uint8", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)
	stringType, _  = abi.NewType("string", "", nil)

	userRegisteredData = abi.Arguments{{Type: uint8Type}}
	tokenMintedData    = abi.Arguments{{Type: uint8Type}, {Type: uint256Type}, {Type: stringType}, {Type: stringType}}
	gradeUpdatedData   = abi.Arguments{{Type: uint8Type}, {Type: uint256Type}, {Type: stringType}}
	tokenListedData    = abi.Arguments{{Type: uint256Type}}
	tokenSoldData      = abi.Arguments{{Type: uint256Type}}
)

func eventSignatures() []common.Hash {
	return []common.Hash{
		sigUserRegistered,
		sigTokenMinted,
		sigGradeUpdated,
		sigTokenEndorsed,
		sigTokenDeactivated,
		sigTokenListed,
		sigListingCancelled,
		sigTokenSold,
	}
}

// Event 从合约日志解出的领域事件
type Event struct {
	Type        models.EventType
	TxHash      string
	LogIndex    uint
	BlockNum    uint64
	Actor       common.Address
	TokenID     uint64
	UserType    uint8
	Grade       uint8
	Score       uint64
	Theme       string
	MetadataURI string
	BasePrice   *big.Int
	Payment     *big.Int
	Buyer       common.Address
}

// ParseLog 按事件签名解码合约日志
func ParseLog(log types.Log) (*Event, error) {
	if len(log.Topics) == 0 {
		return nil, errors.New(errors.ErrEventParse, "log has no topics", nil)
	}

	event := &Event{
		TxHash:   log.TxHash.Hex(),
		LogIndex: log.Index,
		BlockNum: log.BlockNumber,
	}

	switch log.Topics[0] {
	case sigUserRegistered:
		if err := requireTopics(log, 2); err != nil {
			return nil, err
		}
		values, err := userRegisteredData.Unpack(log.Data)
		if err != nil {
			return nil, errors.New(errors.ErrEventParse, "failed to unpack UserRegistered", err)
		}
		event.Type = models.EventUserRegistered
		event.Actor = common.BytesToAddress(log.Topics[1].Bytes())
		event.UserType = values[0].(uint8)

	case sigTokenMinted:
		if err := requireTopics(log, 3); err != nil {
			return nil, err
		}
		values, err := tokenMintedData.Unpack(log.Data)
		if err != nil {
			return nil, errors.New(errors.ErrEventParse, "failed to unpack TokenMinted", err)
		}
		event.Type = models.EventTokenMinted
		event.TokenID = topicUint64(log.Topics[1])
		event.Actor = common.BytesToAddress(log.Topics[2].Bytes())
		event.Grade = values[0].(uint8)
		event.Score = values[1].(*big.Int).Uint64()
		event.Theme = values[2].(string)
		event.MetadataURI = values[3].(string)

	case sigGradeUpdated:
		if err := requireTopics(log, 3); err != nil {
			return nil, err
		}
		values, err := gradeUpdatedData.Unpack(log.Data)
		if err != nil {
			return nil, errors.New(errors.ErrEventParse, "failed to unpack GradeUpdated", err)
		}
		event.Type = models.EventGradeUpdated
		event.TokenID = topicUint64(log.Topics[1])
		event.Actor = common.BytesToAddress(log.Topics[2].Bytes())
		event.Grade = values[0].(uint8)
		event.Score = values[1].(*big.Int).Uint64()
		event.MetadataURI = values[2].(string)

	case sigTokenEndorsed:
		if err := requireTopics(log, 3); err != nil {
			return nil, err
		}
		event.Type = models.EventTokenEndorsed
		event.TokenID = topicUint64(log.Topics[1])
		event.Actor = common.BytesToAddress(log.Topics[2].Bytes())

	case sigTokenDeactivated:
		if err := requireTopics(log, 3); err != nil {
			return nil, err
		}
		event.Type = models.EventTokenDeactivated
		event.TokenID = topicUint64(log.Topics[1])
		event.Actor = common.BytesToAddress(log.Topics[2].Bytes())

	case sigTokenListed:
		if err := requireTopics(log, 3); err != nil {
			return nil, err
		}
		values, err := tokenListedData.Unpack(log.Data)
		if err != nil {
			return nil, errors.New(errors.ErrEventParse, "failed to unpack TokenListed", err)
		}
		event.Type = models.EventTokenListed
		event.TokenID = topicUint64(log.Topics[1])
		event.Actor = common.BytesToAddress(log.Topics[2].Bytes())
		event.BasePrice = values[0].(*big.Int)

	case sigListingCancelled:
		if err := requireTopics(log, 3); err != nil {
			return nil, err
		}
		event.Type = models.EventListingCancelled
		event.TokenID = topicUint64(log.Topics[1])
		event.Actor = common.BytesToAddress(log.Topics[2].Bytes())

	case sigTokenSold:
		if err := requireTopics(log, 4); err != nil {
			return nil, err
		}
		values, err := tokenSoldData.Unpack(log.Data)
		if err != nil {
			return nil, errors.New(errors.ErrEventParse, "failed to unpack TokenSold", err)
		}
		event.Type = models.EventTokenSold
		event.TokenID = topicUint64(log.Topics[1])
		event.Actor = common.BytesToAddress(log.Topics[3].Bytes())
		event.Buyer = common.BytesToAddress(log.Topics[3].Bytes())
		event.Payment = values[0].(*big.Int)

	default:
		return nil, errors.New(errors.ErrEventParse,
			fmt.Sprintf("unknown event signature: %s", log.Topics[0].Hex()), nil)
	}

	return event, nil
}

func requireTopics(log types.Log, want int) error {
	if len(log.Topics) < want {
		return errors.New(errors.ErrEventParse,
			fmt.Sprintf("expected %d topics, got %d", want, len(log.Topics)), nil)
	}
	return nil
}

func topicUint64(topic common.Hash) uint64 {
	return new(big.Int).SetBytes(topic.Bytes()).Uint64()
}
