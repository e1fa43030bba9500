package canister

import (
	"context"
	"strconv"
	"strings"

	"github.com/ORIGYN-SA/mintgo/candy"
)

const methodCollection = "collection_nft_origyn"

// CollectionMeta is the raw collection description returned by the canister.
type CollectionMeta struct {
	Name             string      `cbor:"name,omitempty" json:"name,omitempty"`
	Symbol           string      `cbor:"symbol,omitempty" json:"symbol,omitempty"`
	Logo             string      `cbor:"logo,omitempty" json:"logo,omitempty"`
	Owner            string      `cbor:"owner,omitempty" json:"owner,omitempty"`
	Network          string      `cbor:"network,omitempty" json:"network,omitempty"`
	Managers         []string    `cbor:"managers,omitempty" json:"managers,omitempty"`
	Metadata         candy.Class `cbor:"metadata,omitempty" json:"metadata,omitempty"`
	TokenIDs         []string    `cbor:"token_ids,omitempty" json:"token_ids,omitempty"`
	TokenIDsCount    *uint64     `cbor:"token_ids_count,omitempty" json:"token_ids_count,omitempty"`
	TotalSupply      *uint64     `cbor:"total_supply,omitempty" json:"total_supply,omitempty"`
	AvailableSpace   *uint64     `cbor:"available_space,omitempty" json:"available_space,omitempty"`
	AllocatedStorage *uint64     `cbor:"allocated_storage,omitempty" json:"allocated_storage,omitempty"`
}

// CollectionInfo is the digested form of CollectionMeta.
type CollectionInfo struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	Namespace        string   `json:"namespace"`
	CreatorName      string   `json:"creatorName,omitempty"`
	CreatorPrincipal string   `json:"creatorPrincipal"`
	Network          string   `json:"network,omitempty"`
	Read             string   `json:"read"`
	Write            []string `json:"write"`
	Tokens           []string `json:"tokens"`
	TokensCount      uint64   `json:"tokensCount"`
	AvailableSpace   uint64   `json:"availableSpace"`

	// LastNFTIndex is the highest numeric suffix among the token ids, or -1
	// when the collection holds no numbered token.
	LastNFTIndex int `json:"lastNftIndex"`
}

type CollectionService interface {
	Meta(context.Context) (*CollectionMeta, error)
	Info(context.Context) (*CollectionInfo, error)
	Libraries(context.Context) ([]candy.Class, error)
	Library(ctx context.Context, libraryID string) (candy.Class, bool, error)
	Dapps(context.Context) ([]candy.Class, error)
}

type CollectionServiceOp struct {
	client *Client
}

var _ CollectionService = (*CollectionServiceOp)(nil)

// Meta implements CollectionService
func (s *CollectionServiceOp) Meta(ctx context.Context) (*CollectionMeta, error) {
	// No field selection, the canister returns everything.
	arg := []interface{}{}
	meta := &CollectionMeta{}
	if err := s.client.call(ctx, methodCollection, arg, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// Info implements CollectionService
func (s *CollectionServiceOp) Info(ctx context.Context) (*CollectionInfo, error) {
	meta, err := s.Meta(ctx)
	if err != nil {
		return nil, err
	}
	return NewCollectionInfo(meta), nil
}

// Libraries implements CollectionService
func (s *CollectionServiceOp) Libraries(ctx context.Context) ([]candy.Class, error) {
	return s.client.NFT.Libraries(ctx, "")
}

// Library implements CollectionService
func (s *CollectionServiceOp) Library(ctx context.Context, libraryID string) (candy.Class, bool, error) {
	libraries, err := s.Libraries(ctx)
	if err != nil {
		return nil, false, err
	}
	for _, lib := range libraries {
		if id, _ := lib.Text("library_id"); id == libraryID {
			return lib, true, nil
		}
	}
	return nil, false, nil
}

// Dapps implements CollectionService
func (s *CollectionServiceOp) Dapps(ctx context.Context) ([]candy.Class, error) {
	libraries, err := s.Libraries(ctx)
	if err != nil {
		return nil, err
	}
	dapps := []candy.Class{}
	for _, lib := range libraries {
		if _, ok := lib.Get("com.origyn.dapps.version"); ok {
			dapps = append(dapps, lib)
		}
	}
	return dapps, nil
}

// NewCollectionInfo digests the collection metadata, in particular the
// application block that records the namespace and the creator.
func NewCollectionInfo(meta *CollectionMeta) *CollectionInfo {
	info := &CollectionInfo{
		Network:      meta.Network,
		Tokens:       meta.TokenIDs,
		LastNFTIndex: -1,
	}
	if info.Tokens == nil {
		info.Tokens = []string{}
	}
	if meta.TokenIDsCount != nil {
		info.TokensCount = *meta.TokenIDsCount
	} else {
		info.TokensCount = uint64(len(info.Tokens))
	}
	if meta.AvailableSpace != nil {
		info.AvailableSpace = *meta.AvailableSpace
	}

	for _, tokenID := range info.Tokens {
		n, err := strconv.Atoi(tokenID[strings.LastIndex(tokenID, "-")+1:])
		if err == nil && n > info.LastNFTIndex {
			info.LastNFTIndex = n
		}
	}

	apps := meta.Metadata.Classes("__apps")
	if len(apps) == 0 {
		return info
	}
	app := apps[0]
	info.Namespace, _ = app.Text("app_id")
	info.Read, _ = app.Text("read")
	if write, ok := app.Class("write"); ok {
		if list, ok := write.Array("list"); ok {
			for _, item := range list {
				if p, ok := item.(candy.Principal); ok {
					info.Write = append(info.Write, string(p))
				}
			}
		}
	}
	data, _ := app.Class("data")
	for _, prop := range data {
		switch v := prop.Value.(type) {
		case candy.Text:
			switch {
			case strings.HasSuffix(prop.Name, "collectionid"):
				info.ID = string(v)
			case strings.HasSuffix(prop.Name, "creator_name"):
				info.CreatorName = string(v)
			case prop.Name == "description" || strings.HasSuffix(prop.Name, ".description"):
				info.Description = string(v)
			case strings.HasSuffix(prop.Name, "name"):
				info.Name = string(v)
			}
		case candy.Principal:
			if strings.HasSuffix(prop.Name, "creator_principal") {
				info.CreatorPrincipal = string(v)
			}
		}
	}
	return info
}
