package canister

import (
	"context"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/ORIGYN-SA/mintgo/candy"
)

const (
	methodStage        = "stage_nft_origyn"
	methodStageLibrary = "stage_library_nft_origyn"
	methodNFT          = "nft_origyn"
	methodMint         = "mint_nft_origyn"
	methodHistory      = "history_nft_origyn"
)

// StageChunkRequest carries one chunk of a library asset.
type StageChunkRequest struct {
	TokenID   string
	LibraryID string
	// Filedata is only sent along with the first chunk; nil otherwise.
	Filedata candy.Class
	Chunk    uint64
	Content  []byte
}

type stageChunkArg struct {
	TokenID   string      `cbor:"token_id"`
	LibraryID string      `cbor:"library_id"`
	Filedata  interface{} `cbor:"filedata"`
	Chunk     uint64      `cbor:"chunk"`
	Content   []byte      `cbor:"content"`
}

// StageLibraryResponse is the ok payload of a staged chunk.
type StageLibraryResponse struct {
	Canister string `cbor:"canister" json:"canister"`
}

// NFTInfo describes one token, or the collection when the token id is empty.
type NFTInfo struct {
	Metadata    candy.Class     `cbor:"metadata" json:"metadata"`
	CurrentSale cbor.RawMessage `cbor:"current_sale,omitempty" json:"-"`
}

// Transaction is one entry of the token history.
type Transaction struct {
	TokenID   string                 `cbor:"token_id" json:"token_id"`
	Index     uint64                 `cbor:"index" json:"index"`
	Timestamp uint64                 `cbor:"timestamp" json:"timestamp"`
	TxnType   map[string]interface{} `cbor:"txn_type" json:"txn_type"`
}

type NFTService interface {
	// Stage registers the metadata document of a token. The token id is taken
	// from the document's id property.
	Stage(context.Context, candy.Class) (*Result, error)
	// StageLibrary uploads one chunk of a library asset.
	StageLibrary(context.Context, *StageChunkRequest) (*Result, error)
	Get(ctx context.Context, tokenID string) (*NFTInfo, error)
	Libraries(ctx context.Context, tokenID string) ([]candy.Class, error)
	Mint(ctx context.Context, tokenID string, owner string) (string, error)
	History(ctx context.Context, tokenID string, start, end *uint64) ([]Transaction, error)
}

type NFTServiceOp struct {
	client *Client
}

var _ NFTService = (*NFTServiceOp)(nil)

// Stage implements NFTService
func (s *NFTServiceOp) Stage(ctx context.Context, metadata candy.Class) (*Result, error) {
	arg := map[string]interface{}{"metadata": metadata}
	return s.client.Call(ctx, methodStage, arg)
}

// StageLibrary implements NFTService
func (s *NFTServiceOp) StageLibrary(ctx context.Context, req *StageChunkRequest) (*Result, error) {
	filedata := candy.None
	if req.Filedata != nil {
		filedata = candy.Some(req.Filedata)
	}
	content := req.Content
	if content == nil {
		content = []byte{}
	}
	return s.client.Call(ctx, methodStageLibrary, &stageChunkArg{
		TokenID:   req.TokenID,
		LibraryID: req.LibraryID,
		Filedata:  candy.Encode(filedata),
		Chunk:     req.Chunk,
		Content:   content,
	})
}

// Get implements NFTService
func (s *NFTServiceOp) Get(ctx context.Context, tokenID string) (*NFTInfo, error) {
	info := &NFTInfo{}
	if err := s.client.call(ctx, methodNFT, tokenID, info); err != nil {
		return nil, err
	}
	return info, nil
}

// Libraries implements NFTService
func (s *NFTServiceOp) Libraries(ctx context.Context, tokenID string) ([]candy.Class, error) {
	info, err := s.Get(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	return info.Metadata.Classes("library"), nil
}

// Mint implements NFTService
//
// The token is minted to owner or, when empty, to the caller.
func (s *NFTServiceOp) Mint(ctx context.Context, tokenID string, owner string) (string, error) {
	if owner == "" {
		p, err := s.client.principal()
		if err != nil {
			return "", err
		}
		owner = p
	}
	arg := []interface{}{tokenID, Account{Principal: owner}}
	var minted string
	if err := s.client.call(ctx, methodMint, arg, &minted); err != nil {
		return "", errors.Wrapf(err, "mint %s", tokenID)
	}
	return minted, nil
}

// History implements NFTService
func (s *NFTServiceOp) History(ctx context.Context, tokenID string, start, end *uint64) ([]Transaction, error) {
	arg := []interface{}{tokenID, optNat(start), optNat(end)}
	var txs []Transaction
	if err := s.client.call(ctx, methodHistory, arg, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func optNat(n *uint64) []uint64 {
	if n == nil {
		return []uint64{}
	}
	return []uint64{*n}
}
