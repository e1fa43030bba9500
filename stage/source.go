package stage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// ObjectFetcher downloads objects addressed by s3:// URIs.
type ObjectFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Loader materializes files from the local filesystem, S3 or the web.
type Loader struct {
	logger     logrus.FieldLogger
	fs         afero.Fs
	objects    ObjectFetcher
	httpClient *http.Client

	// retry provides the backoff used by web downloads.
	retry func() backoff.BackOff
}

// NewLoader returns a Loader. objects may be nil when S3 is not configured.
func NewLoader(logger logrus.FieldLogger, fs afero.Fs, objects ObjectFetcher, httpClient *http.Client) *Loader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Loader{
		logger:     logger.WithField("component", "loader"),
		fs:         fs,
		objects:    objects,
		httpClient: httpClient,
		retry: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			return b
		},
	}
}

// Load returns a copy of f with its content and size populated. Files that
// are already materialized are returned as they are.
func (l *Loader) Load(ctx context.Context, f File) (File, error) {
	if f.Materialized() {
		f.Size = int64(len(f.Content))
		return f, nil
	}
	var (
		blob []byte
		err  error
	)
	switch {
	case strings.HasPrefix(f.Path, "s3://"):
		if l.objects == nil {
			return f, errors.Errorf("cannot load %s: S3 is not configured", f.Path)
		}
		blob, err = l.objects.Fetch(ctx, f.Path)
	case strings.HasPrefix(f.Path, "http://"), strings.HasPrefix(f.Path, "https://"):
		blob, err = l.download(ctx, f.Path)
	default:
		blob, err = afero.ReadFile(l.fs, f.Path)
	}
	if err != nil {
		return f, errors.Wrapf(err, "cannot load %s", f.Path)
	}
	if blob == nil {
		blob = []byte{}
	}
	l.logger.WithFields(logrus.Fields{"path": f.Path, "bytes": len(blob)}).Debug("File loaded.")
	f.Content = blob
	f.Size = int64(len(blob))
	return f, nil
}

func (l *Loader) download(ctx context.Context, location string) ([]byte, error) {
	cb := backoff.WithContext(l.retry(), ctx)

	req, err := http.NewRequest("GET", location, nil)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)

	var buf bytes.Buffer
	op := func() error {
		buf.Reset()
		resp, err := l.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("unexpected status code: %d (%s)", resp.StatusCode, resp.Status)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		_, err = io.Copy(&buf, resp.Body)
		return err
	}
	if err := backoff.Retry(op, cb); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Materialize returns a copy of args where every file has been loaded. The
// input is left untouched. A path shared by several files is loaded once.
func (l *Loader) Materialize(ctx context.Context, args *Args) (*Args, error) {
	cache := map[string]File{}
	load := func(f File) (File, error) {
		if !f.Materialized() {
			if loaded, ok := cache[f.Path]; ok {
				f.Content, f.Size = loaded.Content, loaded.Size
				return f, nil
			}
		}
		loaded, err := l.Load(ctx, f)
		if err != nil {
			return f, err
		}
		cache[f.Path] = loaded
		return loaded, nil
	}

	out := *args
	out.CollectionFiles = make([]CollectionFile, len(args.CollectionFiles))
	for i, cf := range args.CollectionFiles {
		f, err := load(cf.File)
		if err != nil {
			return nil, err
		}
		out.CollectionFiles[i] = CollectionFile{File: f, Category: cf.Category}
	}
	out.NFTs = make([]NFT, len(args.NFTs))
	for i, nft := range args.NFTs {
		files := make([]File, len(nft.Files))
		for j, nf := range nft.Files {
			f, err := load(nf)
			if err != nil {
				return nil, err
			}
			files[j] = f
		}
		out.NFTs[i] = NFT{
			Files:                    files,
			CollectionFileReferences: append([]string(nil), nft.CollectionFileReferences...),
			Quantity:                 nft.Quantity,
		}
	}
	return &out, nil
}

// LoadFiles materializes a list of files.
func (l *Loader) LoadFiles(ctx context.Context, files []File) ([]File, error) {
	out := make([]File, 0, len(files))
	for _, f := range files {
		loaded, err := l.Load(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, loaded)
	}
	return out, nil
}
