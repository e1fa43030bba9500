package canister_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ORIGYN-SA/mintgo/candy"
	"github.com/ORIGYN-SA/mintgo/canister"
	"github.com/ORIGYN-SA/mintgo/canister/canistertest"
	"github.com/ORIGYN-SA/mintgo/identity"
)

const creator = "6i6da-t3dfv-vteyg-v5agl-tpgrm-63p4y-t5nmm-gi7nl-o72zu-jd3sc-7qe"

func collectionMetadata() candy.Class {
	return candy.Class{
		candy.TextProp("id", "", true),
		candy.ArrayProp("library", candy.ClassArray([]candy.Class{
			{candy.TextProp("library_id", "logo.png", true), candy.NatProp("sort", 1, true)},
			{
				candy.TextProp("library_id", "wallet", true),
				candy.NatProp("sort", 2, true),
				candy.TextProp("com.origyn.dapps.version", "1", true),
			},
		}), false),
		candy.ArrayProp("__apps", candy.ClassArray([]candy.Class{{
			candy.TextProp("app_id", "com.bm", true),
			candy.TextProp("read", "public", false),
			candy.ClassProp("write", candy.Class{
				candy.TextProp("type", "allow", false),
				candy.ArrayProp("list", candy.Array{candy.Principal(creator)}, false),
			}, false),
			candy.ClassProp("data", candy.Class{
				candy.TextProp("com.bm.name", "Brain Matters", false),
				candy.NatProp("com.bm.total_in_collection", 3, false),
				candy.TextProp("com.bm.collectionid", "bm", false),
				candy.PrincipalProp("com.bm.creator_principal", creator, false),
			}, false),
		}}), false),
	}
}

func TestClient_StageAndGet(t *testing.T) {
	srv := canistertest.NewServer(t)
	c := srv.Client(canister.WithIdentity(mustIdentity(t, creator)))
	ctx := context.Background()

	metadata := candy.Class{candy.TextProp("id", "bm-0", true), candy.BoolProp("is_soulbound", false, true)}
	result, err := c.NFT.Stage(ctx, metadata)
	require.NoError(t, err)
	require.Nil(t, result.Err)

	var tokenID string
	require.NoError(t, result.Decode(&tokenID))
	assert.Equal(t, "bm-0", tokenID)

	info, err := c.NFT.Get(ctx, "bm-0")
	require.NoError(t, err)
	assert.Equal(t, metadata, info.Metadata)

	calls := srv.Calls("stage_nft_origyn")
	require.Len(t, calls, 1)
	assert.Equal(t, creator, calls[0].Sender)
}

func TestClient_StageLibrary(t *testing.T) {
	srv := canistertest.NewServer(t)
	c := srv.Client()
	ctx := context.Background()

	filedata := candy.Class{candy.TextProp("library_id", "a.png", true)}
	for i, part := range []string{"hello ", "world"} {
		req := &canister.StageChunkRequest{TokenID: "bm-0", LibraryID: "a.png", Chunk: uint64(i), Content: []byte(part)}
		if i == 0 {
			req.Filedata = filedata
		}
		result, err := c.NFT.StageLibrary(ctx, req)
		require.NoError(t, err)
		require.Nil(t, result.Err)
	}

	assert.Equal(t, "hello world", string(srv.Content("bm-0", "a.png")))

	calls := srv.Calls("stage_library_nft_origyn")
	require.Len(t, calls, 2)
	first, err := canistertest.StagedChunk(calls[0])
	require.NoError(t, err)
	assert.Equal(t, filedata, first.Filedata)
	second, err := canistertest.StagedChunk(calls[1])
	require.NoError(t, err)
	assert.Nil(t, second.Filedata)
	assert.EqualValues(t, 1, second.Chunk)
}

func TestClient_Errors(t *testing.T) {
	srv := canistertest.NewServer(t)
	c := srv.Client()
	ctx := context.Background()

	// Declared error.
	_, err := c.NFT.Get(ctx, "missing")
	require.Error(t, err)
	cerr, ok := errors.Cause(err).(*canister.Error)
	require.True(t, ok)
	assert.Equal(t, "token_not_found", cerr.Kind)
	assert.False(t, canister.IsTransport(err))

	// Transport failure.
	srv.Handle("nft_origyn", canistertest.Unavailable())
	_, err = c.NFT.Get(ctx, "bm-0")
	require.Error(t, err)
	assert.True(t, canister.IsTransport(err))

	// Unknown canister.
	_, err = c.ForCanister("ryjl3-tyaaa-aaaaa-aaaba-cai").Canister.Cycles(ctx)
	assert.True(t, canister.IsTransport(err))

	// Cancelled context.
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.Canister.Cycles(cctx)
	require.Error(t, err)
	assert.Equal(t, context.Canceled, errors.Unwrap(err))
}

func TestClient_CollectionInfo(t *testing.T) {
	srv := canistertest.NewServer(t)
	srv.Put("", collectionMetadata())
	srv.Put("bm-0", candy.Class{candy.TextProp("id", "bm-0", true)})
	srv.Put("bm-12", candy.Class{candy.TextProp("id", "bm-12", true)})
	srv.Put("bm-3", candy.Class{candy.TextProp("id", "bm-3", true)})
	c := srv.Client()
	ctx := context.Background()

	info, err := c.Collection.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bm", info.ID)
	assert.Equal(t, "Brain Matters", info.Name)
	assert.Equal(t, "com.bm", info.Namespace)
	assert.Equal(t, creator, info.CreatorPrincipal)
	assert.Equal(t, "public", info.Read)
	assert.Equal(t, []string{creator}, info.Write)
	assert.EqualValues(t, 3, info.TokensCount)
	assert.Equal(t, 12, info.LastNFTIndex)

	libs, err := c.Collection.Libraries(ctx)
	require.NoError(t, err)
	assert.Len(t, libs, 2)

	dapps, err := c.Collection.Dapps(ctx)
	require.NoError(t, err)
	require.Len(t, dapps, 1)
	id, _ := dapps[0].Text("library_id")
	assert.Equal(t, "wallet", id)

	lib, ok, err := c.Collection.Library(ctx, "logo.png")
	require.NoError(t, err)
	require.True(t, ok)
	sort, _ := lib.Nat("sort")
	assert.EqualValues(t, 1, sort)
}

func TestNewCollectionInfo_Empty(t *testing.T) {
	info := canister.NewCollectionInfo(&canister.CollectionMeta{})
	assert.Equal(t, -1, info.LastNFTIndex)
	assert.Equal(t, []string{}, info.Tokens)
	assert.Empty(t, info.Namespace)
}

func TestClient_Mint(t *testing.T) {
	srv := canistertest.NewServer(t)
	ctx := context.Background()

	_, err := srv.Client().NFT.Mint(ctx, "bm-0", "")
	assert.Equal(t, canister.ErrNoPrincipal, err)

	c := srv.Client(canister.WithIdentity(mustIdentity(t, creator)))
	minted, err := c.NFT.Mint(ctx, "bm-0", "")
	require.NoError(t, err)
	assert.Equal(t, "bm-0", minted)

	// The anonymous attempt never reached the canister.
	calls := srv.Calls("mint_nft_origyn")
	require.Len(t, calls, 1)
	args := calls[0].Arg.([]interface{})
	assert.Equal(t, map[string]interface{}{"principal": creator}, args[1])
}

func TestClient_Market(t *testing.T) {
	srv := canistertest.NewServer(t)
	srv.Handle("market_transfer_nft_origyn", canistertest.Reply(&canister.MarketTransferResponse{TokenID: "bm-0", Index: 7}))
	srv.Handle("sale_nft_origyn", canistertest.Reply("done"))
	srv.Handle("sale_info_nft_origyn", canistertest.Reply(map[string]interface{}{
		"deposit_info": map[string]interface{}{"account_id": "abc"},
	}))
	c := srv.Client(canister.WithIdentity(mustIdentity(t, creator)))
	ctx := context.Background()

	resp, err := c.Market.StartAuction(ctx, &canister.AuctionRequest{
		TokenID:    "bm-0",
		StartPrice: 1.5,
		PriceStep:  0.1,
		EndDate:    time.Unix(1700000000, 0),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, resp.Index)

	calls := srv.Calls("market_transfer_nft_origyn")
	require.Len(t, calls, 1)
	arg := calls[0].Arg.(map[string]interface{})
	auction := arg["sales_config"].(map[string]interface{})["pricing"].(map[string]interface{})["auction"].(map[string]interface{})
	assert.EqualValues(t, 150000000, auction["start_price"])
	assert.Equal(t, []interface{}{}, auction["buy_now"])

	raw, err := c.Market.EndSale(ctx, "bm-0")
	require.NoError(t, err)
	v, err := canister.DecodeRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, "done", v)

	_, err = c.Market.DepositEscrow(ctx, &canister.EscrowRequest{TokenID: "bm-0", Amount: 2, Seller: creator})
	require.NoError(t, err)

	_, err = c.Market.RejectEscrow(ctx, &canister.EscrowActionRequest{TokenID: "bm-0", Seller: canister.Account{Principal: creator}})
	assert.Equal(t, canister.ErrInvalidAccount, errors.Cause(err))

	sales := srv.Calls("sale_nft_origyn")
	require.Len(t, sales, 2)
	assert.Equal(t, map[string]interface{}{"end_sale": "bm-0"}, sales[0].Arg)
}

func TestTokenSpec_Units(t *testing.T) {
	assert.EqualValues(t, 150000000, canister.OGYToken.Units(1.5))
	assert.EqualValues(t, 1, canister.OGYToken.Units(0.00000001))
}

func mustIdentity(t *testing.T, principal string) identity.Identity {
	id, err := identity.FromText(principal)
	require.NoError(t, err)
	return id
}
