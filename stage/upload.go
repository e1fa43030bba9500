package stage

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ORIGYN-SA/mintgo/candy"
	"github.com/ORIGYN-SA/mintgo/canister"
)

const (
	// MaxChunkSize is the largest chunk accepted by the canister.
	MaxChunkSize = 2048000

	// MaxChunkAttempts bounds the calls made for a single chunk.
	MaxChunkAttempts = 5

	// ChunkDelay is both the wait between attempts and the throttle pause.
	ChunkDelay = 3 * time.Second

	// ThrottleEvery chunks the uploader pauses to let the canister certify
	// its state.
	ThrottleEvery = 10
)

// Metrics accumulates the bytes staged during one run.
type Metrics struct {
	TotalFileSize int64 `json:"totalFileSize"`
}

// ChunkUploadResult is the outcome of a library upload: the answer to its
// last chunk, or the error that stopped it.
type ChunkUploadResult struct {
	LibraryID string                         `json:"libraryId"`
	Chunks    int                            `json:"chunks"`
	Ok        *canister.StageLibraryResponse `json:"ok,omitempty"`
	Err       *canister.Error                `json:"err,omitempty"`
}

// Failed reports whether the upload did not complete.
func (r *ChunkUploadResult) Failed() bool {
	return r.Err != nil
}

// Counters are process wide mirrors of the staging metrics.
type Counters struct {
	StagedBytes prometheus.Counter
	Chunks      prometheus.Counter
	Retries     prometheus.Counter
	Failures    prometheus.Counter
}

// NewCounters returns unregistered counters.
func NewCounters() *Counters {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: "mintgo", Name: name, Help: help})
	}
	return &Counters{
		StagedBytes: counter("staged_bytes_total", "The total number of library bytes staged."),
		Chunks:      counter("chunks_staged_total", "The total number of chunks staged."),
		Retries:     counter("chunk_retries_total", "The total number of chunk upload retries."),
		Failures:    counter("chunk_failures_total", "The total number of chunks that could not be staged."),
	}
}

// Collectors returns the counters for registration.
func (c *Counters) Collectors() []prometheus.Collector {
	return []prometheus.Collector{c.StagedBytes, c.Chunks, c.Retries, c.Failures}
}

// Uploader sends library assets to the canister in chunks. Chunks of an
// asset are sent strictly in order; only the first carries the metadata.
type Uploader struct {
	logger    logrus.FieldLogger
	nft       canister.NFTService
	chunkSize int
	backOff   func() backoff.BackOff
	pause     func(context.Context, time.Duration) error
	counters  *Counters
}

type UploaderOption func(*Uploader)

// WithChunkSize overrides MaxChunkSize.
func WithChunkSize(n int) UploaderOption {
	return func(u *Uploader) {
		if n > 0 {
			u.chunkSize = n
		}
	}
}

// WithBackOff sets the delay policy between attempts of a chunk. The number
// of attempts is bounded by MaxChunkAttempts regardless of the policy.
func WithBackOff(fn func() backoff.BackOff) UploaderOption {
	return func(u *Uploader) {
		u.backOff = fn
	}
}

// WithPause sets the function used to throttle the upload.
func WithPause(fn func(context.Context, time.Duration) error) UploaderOption {
	return func(u *Uploader) {
		u.pause = fn
	}
}

// WithCounters sets the prometheus counters updated by the uploader.
func WithCounters(c *Counters) UploaderOption {
	return func(u *Uploader) {
		u.counters = c
	}
}

func NewUploader(logger logrus.FieldLogger, nft canister.NFTService, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		logger:    logger.WithField("component", "uploader"),
		nft:       nft,
		chunkSize: MaxChunkSize,
		backOff: func() backoff.BackOff {
			return backoff.NewConstantBackOff(ChunkDelay)
		},
		pause:    sleep,
		counters: NewCounters(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ChunkCount returns the number of chunks needed for size bytes. Empty assets
// still take one chunk to carry their metadata.
func ChunkCount(size, chunkSize int) int {
	if size <= 0 {
		return 1
	}
	return (size + chunkSize - 1) / chunkSize
}

// Upload stages one library asset. The returned error is only set when ctx
// is done; every other failure is reported in the result.
func (u *Uploader) Upload(ctx context.Context, lib LibraryFile, tokenID string, metrics *Metrics, metadata candy.Class) (*ChunkUploadResult, error) {
	content := lib.File.Content
	size := len(content)
	count := ChunkCount(size, u.chunkSize)
	logger := u.logger.WithFields(logrus.Fields{"library": lib.LibraryID, "token": tokenID})
	logger.WithFields(logrus.Fields{"path": lib.File.Path, "bytes": size, "chunks": count}).Info("Staging asset.")

	result := &ChunkUploadResult{LibraryID: lib.LibraryID}
	for i := 0; i < count; i++ {
		if i > 0 && i%ThrottleEvery == 0 {
			if err := u.pause(ctx, ChunkDelay); err != nil {
				return nil, err
			}
		}

		start := i * u.chunkSize
		end := start + u.chunkSize
		if end > size {
			end = size
		}
		req := &canister.StageChunkRequest{
			TokenID:   tokenID,
			LibraryID: lib.LibraryID,
			Chunk:     uint64(i),
			Content:   content[start:end],
		}
		if i == 0 {
			req.Filedata = metadata
		}

		res, err := u.uploadChunk(ctx, logger, req)
		if err != nil {
			return nil, err
		}
		result.Chunks = i + 1
		if res == nil {
			u.counters.Failures.Inc()
			logger.WithField("chunk", i).Errorf("Max retries of %d has been reached.", MaxChunkAttempts)
			result.Err = &canister.Error{Text: canister.ErrTextMaxRetriesExceeded}
			return result, nil
		}
		if res.Err != nil {
			u.counters.Failures.Inc()
			logger.WithField("chunk", i).WithError(res.Err).Error("Chunk declined.")
			result.Err = res.Err
			return result, nil
		}

		n := end - start
		metrics.TotalFileSize += int64(n)
		u.counters.Chunks.Inc()
		u.counters.StagedBytes.Add(float64(n))
		logger.WithFields(logrus.Fields{
			"chunk": i,
			"bytes": n,
			"total": metrics.TotalFileSize,
		}).Debug("Chunk staged.")

		ok := &canister.StageLibraryResponse{}
		if err := res.Decode(ok); err != nil {
			logger.WithError(err).Warn("Unexpected chunk answer.")
		}
		result.Ok = ok
	}
	return result, nil
}

// uploadChunk sends one chunk, retrying transport failures. It returns a nil
// result when the attempts are exhausted.
func (u *Uploader) uploadChunk(ctx context.Context, logger logrus.FieldLogger, req *canister.StageChunkRequest) (*canister.Result, error) {
	var result *canister.Result
	op := func() error {
		res, err := u.nft.StageLibrary(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		result = res
		return nil
	}
	notify := func(err error, d time.Duration) {
		u.counters.Retries.Inc()
		logger.WithError(err).WithField("chunk", req.Chunk).Warnf("Error while staging chunk, trying again in %s.", d)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(u.backOff(), MaxChunkAttempts-1), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	return result, nil
}
