package canister

import (
	"context"
	"math"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

const (
	methodMarketTransfer = "market_transfer_nft_origyn"
	methodSale           = "sale_nft_origyn"
	methodSaleInfo       = "sale_info_nft_origyn"
)

// ErrInvalidAccount is returned when an Account has none of its forms set.
var ErrInvalidAccount = errors.New("invalid account")

// Account identifies a ledger account in one of the forms the canister
// accepts. Exactly one form should be set.
type Account struct {
	Principal  string `cbor:"principal,omitempty" json:"principal,omitempty"`
	AccountID  string `cbor:"account_id,omitempty" json:"account_id,omitempty"`
	Owner      string `cbor:"-" json:"owner,omitempty"`
	SubAccount []byte `cbor:"-" json:"sub_account,omitempty"`
}

func (a Account) wire() (interface{}, error) {
	switch {
	case a.Principal != "":
		return map[string]interface{}{"principal": a.Principal}, nil
	case a.AccountID != "":
		return map[string]interface{}{"account_id": a.AccountID}, nil
	case a.Owner != "" && len(a.SubAccount) > 0:
		return map[string]interface{}{"account": map[string]interface{}{
			"owner":       a.Owner,
			"sub_account": [][]byte{a.SubAccount},
		}}, nil
	}
	return nil, ErrInvalidAccount
}

// TokenSpec describes the ledger token used for pricing.
type TokenSpec struct {
	Canister string
	Fee      uint64
	Decimals uint64
	Symbol   string
	// Standard is one of Ledger, ICRC1, DIP20 or EXTFungible.
	Standard string
}

// OGYToken is the default token.
var OGYToken = TokenSpec{
	Canister: "jwcfb-hyaaa-aaaaj-aac4q-cai",
	Fee:      200000,
	Decimals: 8,
	Symbol:   "OGY",
	Standard: "Ledger",
}

func (t *TokenSpec) wire() map[string]interface{} {
	spec := *t
	switch spec.Standard {
	case "Ledger", "DIP20", "EXTFungible":
	default:
		spec.Standard = "ICRC1"
	}
	return map[string]interface{}{"ic": map[string]interface{}{
		"canister": spec.Canister,
		"fee":      spec.Fee,
		"decimals": spec.Decimals,
		"symbol":   spec.Symbol,
		"standard": map[string]interface{}{spec.Standard: nil},
	}}
}

// Units converts an amount expressed in tokens into base units.
func (t *TokenSpec) Units(amount float64) uint64 {
	return uint64(math.Round(amount * math.Pow10(int(t.Decimals))))
}

func tokenOrDefault(t *TokenSpec) *TokenSpec {
	if t == nil {
		return &OGYToken
	}
	return t
}

type AuctionRequest struct {
	TokenID    string
	StartPrice float64
	PriceStep  float64
	BuyNow     float64 // Zero means no buy now price.
	StartDate  time.Time
	EndDate    time.Time
	Token      *TokenSpec
	BrokerID   string
}

type EscrowRequest struct {
	TokenID string
	Amount  float64
	SaleID  string
	Seller  string
	Token   *TokenSpec
	// TransactionHeight is the block of the ledger transfer that funded the
	// escrow.
	TransactionHeight uint64
}

type EscrowActionRequest struct {
	TokenID string
	Amount  uint64
	Buyer   Account
	Seller  Account
	Token   *TokenSpec
}

// MarketTransferResponse is the ok payload of an auction start.
type MarketTransferResponse struct {
	TokenID string                 `cbor:"token_id" json:"token_id"`
	Index   uint64                 `cbor:"index" json:"index"`
	TxnType map[string]interface{} `cbor:"txn_type" json:"txn_type"`
}

type MarketService interface {
	StartAuction(context.Context, *AuctionRequest) (*MarketTransferResponse, error)
	DepositEscrow(context.Context, *EscrowRequest) (cbor.RawMessage, error)
	EndSale(ctx context.Context, tokenID string) (cbor.RawMessage, error)
	WithdrawEscrow(context.Context, *EscrowActionRequest) (cbor.RawMessage, error)
	RejectEscrow(context.Context, *EscrowActionRequest) (cbor.RawMessage, error)
	DepositAccount(context.Context) (string, error)
}

type MarketServiceOp struct {
	client *Client
}

var _ MarketService = (*MarketServiceOp)(nil)

func nanos(t time.Time) uint64 {
	return uint64(t.UnixNano())
}

// StartAuction implements MarketService
func (s *MarketServiceOp) StartAuction(ctx context.Context, req *AuctionRequest) (*MarketTransferResponse, error) {
	if req.EndDate.IsZero() {
		return nil, errors.New("auction end date is required")
	}
	token := tokenOrDefault(req.Token)
	start := req.StartDate
	if start.IsZero() {
		start = time.Now()
	}
	buyNow := []uint64{}
	if req.BuyNow > 0 {
		buyNow = append(buyNow, token.Units(req.BuyNow))
	}
	broker := []string{}
	if req.BrokerID != "" {
		broker = append(broker, req.BrokerID)
	}
	arg := map[string]interface{}{
		"token_id": req.TokenID,
		"sales_config": map[string]interface{}{
			"pricing": map[string]interface{}{"auction": map[string]interface{}{
				"start_price":  token.Units(req.StartPrice),
				"token":        token.wire(),
				"reserve":      []uint64{},
				"start_date":   nanos(start),
				"min_increase": map[string]interface{}{"amount": token.Units(req.PriceStep)},
				"allow_list":   []string{},
				"buy_now":      buyNow,
				"ending":       map[string]interface{}{"date": nanos(req.EndDate)},
			}},
			"escrow_receipt": []interface{}{},
			"broker_id":      broker,
		},
	}
	resp := &MarketTransferResponse{}
	if err := s.client.call(ctx, methodMarketTransfer, arg, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// DepositAccount implements MarketService
//
// It returns the account the caller is expected to fund before depositing
// an escrow.
func (s *MarketServiceOp) DepositAccount(ctx context.Context) (string, error) {
	var info struct {
		DepositInfo struct {
			AccountID string `cbor:"account_id"`
		} `cbor:"deposit_info"`
	}
	arg := map[string]interface{}{"deposit_info": []interface{}{}}
	if err := s.client.call(ctx, methodSaleInfo, arg, &info); err != nil {
		return "", err
	}
	if info.DepositInfo.AccountID == "" {
		return "", errors.New("can't get deposit account id")
	}
	return info.DepositInfo.AccountID, nil
}

// DepositEscrow implements MarketService
func (s *MarketServiceOp) DepositEscrow(ctx context.Context, req *EscrowRequest) (cbor.RawMessage, error) {
	buyer, err := s.client.principal()
	if err != nil {
		return nil, err
	}
	if _, err := s.DepositAccount(ctx); err != nil {
		return nil, err
	}
	token := tokenOrDefault(req.Token)
	saleID := []string{}
	if req.SaleID != "" {
		saleID = append(saleID, req.SaleID)
	}
	arg := map[string]interface{}{"escrow_deposit": map[string]interface{}{
		"token_id": req.TokenID,
		"deposit": map[string]interface{}{
			"token":   token.wire(),
			"trx_id":  []interface{}{map[string]interface{}{"nat": req.TransactionHeight}},
			"seller":  map[string]interface{}{"principal": req.Seller},
			"buyer":   map[string]interface{}{"principal": buyer},
			"amount":  token.Units(req.Amount),
			"sale_id": saleID,
		},
		"lock_to_date": []uint64{},
	}}
	return s.sale(ctx, arg)
}

// EndSale implements MarketService
func (s *MarketServiceOp) EndSale(ctx context.Context, tokenID string) (cbor.RawMessage, error) {
	return s.sale(ctx, map[string]interface{}{"end_sale": tokenID})
}

// WithdrawEscrow implements MarketService
func (s *MarketServiceOp) WithdrawEscrow(ctx context.Context, req *EscrowActionRequest) (cbor.RawMessage, error) {
	to, err := s.client.principal()
	if err != nil {
		return nil, err
	}
	buyer, seller, err := req.accounts()
	if err != nil {
		return nil, err
	}
	arg := map[string]interface{}{"withdraw": map[string]interface{}{
		"escrow": map[string]interface{}{
			"amount":      req.Amount,
			"token_id":    req.TokenID,
			"token":       tokenOrDefault(req.Token).wire(),
			"buyer":       buyer,
			"seller":      seller,
			"withdraw_to": map[string]interface{}{"principal": to},
		},
	}}
	return s.sale(ctx, arg)
}

// RejectEscrow implements MarketService
func (s *MarketServiceOp) RejectEscrow(ctx context.Context, req *EscrowActionRequest) (cbor.RawMessage, error) {
	if _, err := s.client.principal(); err != nil {
		return nil, err
	}
	buyer, seller, err := req.accounts()
	if err != nil {
		return nil, err
	}
	arg := map[string]interface{}{"withdraw": map[string]interface{}{
		"reject": map[string]interface{}{
			"token":    tokenOrDefault(req.Token).wire(),
			"token_id": req.TokenID,
			"buyer":    buyer,
			"seller":   seller,
		},
	}}
	return s.sale(ctx, arg)
}

func (s *MarketServiceOp) sale(ctx context.Context, arg interface{}) (cbor.RawMessage, error) {
	result, err := s.client.Call(ctx, methodSale, arg)
	if err != nil {
		return nil, err
	}
	if result.Err != nil {
		return nil, result.Err
	}
	return result.Ok, nil
}

func (r *EscrowActionRequest) accounts() (buyer, seller interface{}, err error) {
	if buyer, err = r.Buyer.wire(); err != nil {
		return nil, nil, errors.Wrap(err, "buyer")
	}
	if seller, err = r.Seller.wire(); err != nil {
		return nil, nil, errors.Wrap(err, "seller")
	}
	return buyer, seller, nil
}
