package canister

import (
	"context"

	"github.com/fxamacker/cbor/v2"
)

const methodBalance = "balance_of_nft_origyn"

// Balance lists what an account holds in the canister.
type Balance struct {
	NFTs          []string          `cbor:"nfts" json:"nfts"`
	Escrow        []cbor.RawMessage `cbor:"escrow" json:"-"`
	Sales         []cbor.RawMessage `cbor:"sales" json:"-"`
	Offers        []cbor.RawMessage `cbor:"offers" json:"-"`
	Stake         []cbor.RawMessage `cbor:"stake" json:"-"`
	MultiCanister []string          `cbor:"multi_canister,omitempty" json:"multi_canister,omitempty"`
}

type BalanceService interface {
	// Of returns the balance of principal, or of the caller when empty.
	Of(ctx context.Context, principal string) (*Balance, error)
}

type BalanceServiceOp struct {
	client *Client
}

var _ BalanceService = (*BalanceServiceOp)(nil)

// Of implements BalanceService
func (s *BalanceServiceOp) Of(ctx context.Context, principal string) (*Balance, error) {
	if principal == "" {
		p, err := s.client.principal()
		if err != nil {
			return nil, err
		}
		principal = p
	}
	balance := &Balance{}
	if err := s.client.call(ctx, methodBalance, Account{Principal: principal}, balance); err != nil {
		return nil, err
	}
	return balance, nil
}
