package canister

import "context"

const (
	methodCycles      = "cycles"
	methodStorageInfo = "storage_info_nft_origyn"
)

// StorageInfo reports the canister storage allocation.
type StorageInfo struct {
	AllocatedStorage uint64 `cbor:"allocated_storage" json:"allocated_storage"`
	AvailableSpace   uint64 `cbor:"available_space" json:"available_space"`
}

type CanisterService interface {
	Cycles(ctx context.Context) (uint64, error)
	Storage(ctx context.Context) (*StorageInfo, error)
}

type CanisterServiceOp struct {
	client *Client
}

var _ CanisterService = (*CanisterServiceOp)(nil)

// Cycles implements CanisterService
func (s *CanisterServiceOp) Cycles(ctx context.Context) (uint64, error) {
	var cycles uint64
	if err := s.client.call(ctx, methodCycles, nil, &cycles); err != nil {
		return 0, err
	}
	return cycles, nil
}

// Storage implements CanisterService
func (s *CanisterServiceOp) Storage(ctx context.Context) (*StorageInfo, error) {
	info := &StorageInfo{}
	if err := s.client.call(ctx, methodStorageInfo, nil, info); err != nil {
		return nil, err
	}
	return info, nil
}
