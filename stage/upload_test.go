package stage

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ORIGYN-SA/mintgo/candy"
	"github.com/ORIGYN-SA/mintgo/canister"
)

type nftmock struct {
	mock.Mock
	canister.NFTService
}

func (m *nftmock) StageLibrary(ctx context.Context, req *canister.StageChunkRequest) (*canister.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*canister.Result)
	return res, args.Error(1)
}

func (m *nftmock) requests() []*canister.StageChunkRequest {
	var reqs []*canister.StageChunkRequest
	for _, c := range m.Calls {
		reqs = append(reqs, c.Arguments.Get(1).(*canister.StageChunkRequest))
	}
	return reqs
}

type pauses struct {
	calls []time.Duration
}

func (p *pauses) pause(ctx context.Context, d time.Duration) error {
	p.calls = append(p.calls, d)
	return ctx.Err()
}

func okResult(t *testing.T) *canister.Result {
	res, err := canister.OK(&canister.StageLibraryResponse{Canister: "rrkah-fqaaa-aaaaa-aaaaq-cai"})
	require.NoError(t, err)
	return res
}

func newTestUploader(m canister.NFTService, chunkSize int, p *pauses) *Uploader {
	logger, _ := test.NewNullLogger()
	return NewUploader(logger, m,
		WithChunkSize(chunkSize),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		WithPause(p.pause),
	)
}

func library(size int) LibraryFile {
	content := bytes.Repeat([]byte("abcdefghij"), size/10+1)[:size]
	return LibraryFile{LibraryID: "asset.png", File: File{Filename: "asset.png", Path: "asset.png", Size: int64(size), Content: content}}
}

func TestChunkCount(t *testing.T) {
	tests := []struct {
		size, chunk, want int
	}{
		{0, 4, 1},
		{1, 4, 1},
		{4, 4, 1},
		{5, 4, 2},
		{MaxChunkSize*2 + 1, MaxChunkSize, 3},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ChunkCount(tc.size, tc.chunk), "size=%d chunk=%d", tc.size, tc.chunk)
	}
}

func TestUploader_Upload(t *testing.T) {
	tests := map[string]struct {
		size  int
		chunk int
	}{
		"empty asset":           {0, 4},
		"smaller than a chunk":  {3, 4},
		"exactly one chunk":     {4, 4},
		"one byte over":         {5, 4},
		"many chunks":           {23, 4},
		"throttled":             {101, 4},
		"chunk size irrelevant": {101, 7},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			m := &nftmock{}
			m.On("StageLibrary", mock.Anything, mock.Anything).Return(okResult(t), nil)
			p := &pauses{}
			u := newTestUploader(m, tc.chunk, p)
			lib := library(tc.size)
			metadata := candy.Class{candy.TextProp("library_id", "asset.png", true)}
			metrics := &Metrics{TotalFileSize: 100}

			res, err := u.Upload(context.Background(), lib, "bm-0", metrics, metadata)
			require.NoError(t, err)
			require.False(t, res.Failed())
			assert.NotNil(t, res.Ok)

			want := ChunkCount(tc.size, tc.chunk)
			m.AssertNumberOfCalls(t, "StageLibrary", want)
			assert.Equal(t, want, res.Chunks)

			content := []byte{}
			for i, req := range m.requests() {
				assert.EqualValues(t, i, req.Chunk)
				assert.Equal(t, "bm-0", req.TokenID)
				assert.Equal(t, "asset.png", req.LibraryID)
				assert.True(t, len(req.Content) <= tc.chunk)
				if i == 0 {
					assert.Equal(t, metadata, req.Filedata)
				} else {
					assert.Nil(t, req.Filedata)
				}
				content = append(content, req.Content...)
			}
			assert.Equal(t, lib.File.Content, content)
			assert.EqualValues(t, 100+tc.size, metrics.TotalFileSize)
			assert.Len(t, p.calls, (want-1)/ThrottleEvery)
		})
	}
}

func TestUploader_Upload_Throttle(t *testing.T) {
	m := &nftmock{}
	m.On("StageLibrary", mock.Anything, mock.Anything).Return(okResult(t), nil)
	p := &pauses{}
	u := newTestUploader(m, 1, p)

	_, err := u.Upload(context.Background(), library(25), "bm-0", &Metrics{}, nil)
	require.NoError(t, err)

	m.AssertNumberOfCalls(t, "StageLibrary", 25)
	assert.Equal(t, []time.Duration{ChunkDelay, ChunkDelay}, p.calls)
}

func TestUploader_Upload_RetryBound(t *testing.T) {
	m := &nftmock{}
	m.On("StageLibrary", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	u := newTestUploader(m, 4, &pauses{})
	metrics := &Metrics{}

	res, err := u.Upload(context.Background(), library(10), "bm-0", metrics, nil)
	require.NoError(t, err)
	require.True(t, res.Failed())
	assert.Equal(t, canister.ErrTextMaxRetriesExceeded, res.Err.Text)

	// Five attempts on the first chunk, never a sixth, never the next chunk.
	m.AssertNumberOfCalls(t, "StageLibrary", MaxChunkAttempts)
	for _, req := range m.requests() {
		assert.EqualValues(t, 0, req.Chunk)
	}
	assert.EqualValues(t, 0, metrics.TotalFileSize)
	assert.Equal(t, float64(MaxChunkAttempts-1), testutil.ToFloat64(u.counters.Retries))
	assert.Equal(t, float64(1), testutil.ToFloat64(u.counters.Failures))
}

func TestUploader_Upload_RetryRecovers(t *testing.T) {
	m := &nftmock{}
	m.On("StageLibrary", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Times(2)
	m.On("StageLibrary", mock.Anything, mock.Anything).Return(okResult(t), nil)
	u := newTestUploader(m, 4, &pauses{})
	metrics := &Metrics{}

	res, err := u.Upload(context.Background(), library(6), "bm-0", metrics, nil)
	require.NoError(t, err)
	assert.False(t, res.Failed())

	m.AssertNumberOfCalls(t, "StageLibrary", 4)
	chunks := []uint64{}
	for _, req := range m.requests() {
		chunks = append(chunks, req.Chunk)
	}
	assert.Equal(t, []uint64{0, 0, 0, 1}, chunks)
	assert.EqualValues(t, 6, metrics.TotalFileSize)
}

func TestUploader_Upload_DeclaredError(t *testing.T) {
	declined := &canister.Error{Number: 12, Text: "library is immutable", Kind: "unauthorized_access"}
	m := &nftmock{}
	m.On("StageLibrary", mock.Anything, mock.MatchedBy(func(req *canister.StageChunkRequest) bool {
		return req.Chunk == 0
	})).Return(okResult(t), nil)
	m.On("StageLibrary", mock.Anything, mock.Anything).Return(canister.Failed(declined), nil)
	u := newTestUploader(m, 4, &pauses{})
	metrics := &Metrics{}

	res, err := u.Upload(context.Background(), library(12), "bm-0", metrics, nil)
	require.NoError(t, err)
	require.True(t, res.Failed())
	assert.Equal(t, declined, res.Err)

	// Not retried, and the third chunk is never sent.
	m.AssertNumberOfCalls(t, "StageLibrary", 2)
	assert.EqualValues(t, 4, metrics.TotalFileSize)
}

func TestUploader_Upload_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &nftmock{}
	m.On("StageLibrary", mock.Anything, mock.Anything).Return(nil, context.Canceled)
	u := newTestUploader(m, 4, &pauses{})

	res, err := u.Upload(ctx, library(8), "bm-0", &Metrics{}, nil)
	assert.Nil(t, res)
	assert.Equal(t, context.Canceled, err)
	m.AssertNumberOfCalls(t, "StageLibrary", 1)
}
