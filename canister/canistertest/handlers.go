package canistertest

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ORIGYN-SA/mintgo/candy"
	"github.com/ORIGYN-SA/mintgo/canister"
)

// ErrUnavailable is the failure injected by the handlers below.
var ErrUnavailable = errors.New("canister unavailable")

// Unavailable fails every call.
func Unavailable() Handler {
	return func(Call) (*canister.Result, error) {
		return nil, ErrUnavailable
	}
}

// FailFirst fails the first n calls and hands the rest to next.
func FailFirst(n int, next Handler) Handler {
	var mu sync.Mutex
	return func(c Call) (*canister.Result, error) {
		mu.Lock()
		fail := n > 0
		n--
		mu.Unlock()
		if fail {
			return nil, ErrUnavailable
		}
		return next(c)
	}
}

// Declare answers every call with the given canister error.
func Declare(err *canister.Error) Handler {
	return func(Call) (*canister.Result, error) {
		return canister.Failed(err), nil
	}
}

// Reply answers every call with v.
func Reply(v interface{}) Handler {
	return func(Call) (*canister.Result, error) {
		return canister.OK(v)
	}
}

// Chunk is a decoded stage_library_nft_origyn argument.
type Chunk struct {
	TokenID   string
	LibraryID string
	Chunk     uint64
	Content   []byte
	Filedata  candy.Class
}

// StagedChunk decodes the argument of a stage_library_nft_origyn call.
func StagedChunk(c Call) (*Chunk, error) {
	m, ok := c.Arg.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("unexpected argument %T", c.Arg)
	}
	chunk := &Chunk{}
	chunk.TokenID, _ = m["token_id"].(string)
	chunk.LibraryID, _ = m["library_id"].(string)
	chunk.Chunk, _ = m["chunk"].(uint64)
	chunk.Content, _ = m["content"].([]byte)
	filedata, err := candy.Decode(m["filedata"])
	if err != nil {
		return nil, errors.Wrap(err, "filedata")
	}
	if opt, ok := filedata.(candy.Option); ok && opt.Value != nil {
		if chunk.Filedata, ok = opt.Value.(candy.Class); !ok {
			return nil, errors.Errorf("filedata holds %s", candy.Kind(opt.Value))
		}
	}
	return chunk, nil
}

// StagedMetadata decodes the argument of a stage_nft_origyn call.
func StagedMetadata(c Call) (candy.Class, error) {
	m, ok := c.Arg.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("unexpected argument %T", c.Arg)
	}
	return candy.DecodeClass(m["metadata"])
}
