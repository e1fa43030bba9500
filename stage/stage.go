package stage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ORIGYN-SA/mintgo/candy"
	"github.com/ORIGYN-SA/mintgo/canister"
)

// Summary describes a stage configuration.
type Summary struct {
	TotalFiles              int    `json:"totalFiles"`
	TotalFileSize           string `json:"totalFileSize"`
	TotalNFTDefinitionCount int    `json:"totalNftDefinitionCount"`
	TotalNFTCount           int    `json:"totalNftCount"`
}

// Config holds the documents of a staging run.
type Config struct {
	Settings   *Settings `json:"settings"`
	Summary    Summary   `json:"summary"`
	Collection Meta      `json:"collection"`
	NFTs       []Meta    `json:"nfts"`
}

// FormatSize renders a byte count as "{bytes} ({human})".
func FormatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return fmt.Sprintf("%d (%s)", n, humanize.Bytes(uint64(n)))
}

// BuildStageConfig builds the collection and NFT documents for args. The
// files are expected to be materialized. No remote call is made.
func BuildStageConfig(args *Args) (*Config, error) {
	settings, err := NewSettings(args)
	if err != nil {
		return nil, err
	}
	collection, err := settings.CollectionMeta()
	if err != nil {
		return nil, err
	}
	nfts, err := settings.NFTMetas()
	if err != nil {
		return nil, err
	}
	return &Config{
		Settings: settings,
		Summary: Summary{
			TotalFiles:              settings.distinctFiles(),
			TotalFileSize:           FormatSize(settings.TotalFileSize),
			TotalNFTDefinitionCount: len(args.NFTs),
			TotalNFTCount:           args.totalInstances(),
		},
		Collection: collection,
		NFTs:       nfts,
	}, nil
}

// UnitResult is the outcome of one staging unit.
type UnitResult struct {
	NFTStage     string               `json:"nftStage"`
	LibraryStage []*ChunkUploadResult `json:"libraryStage"`
}

// Failure is a library that could not be staged.
type Failure struct {
	TokenID   string          `json:"tokenId"`
	LibraryID string          `json:"libraryId"`
	Err       *canister.Error `json:"err"`
}

func (f Failure) String() string {
	return fmt.Sprintf("%s/%s: %v", f.TokenID, f.LibraryID, f.Err)
}

// StageResult is the outcome of a staging run, keyed by token id. The
// collection is keyed by the empty string.
type StageResult struct {
	Tokens        []string               `json:"tokens"`
	Response      map[string]*UnitResult `json:"response"`
	TotalFileSize int64                  `json:"totalFileSize"`
}

func newStageResult() *StageResult {
	return &StageResult{Tokens: []string{}, Response: map[string]*UnitResult{}}
}

// Failures lists the libraries that were not staged, in staging order.
func (r *StageResult) Failures() []Failure {
	var failures []Failure
	for _, tokenID := range r.Tokens {
		for _, lib := range r.Response[tokenID].LibraryStage {
			if lib.Failed() {
				failures = append(failures, Failure{TokenID: tokenID, LibraryID: lib.LibraryID, Err: lib.Err})
			}
		}
	}
	return failures
}

// Stager drives collections through registration and upload.
type Stager struct {
	logger      logrus.FieldLogger
	client      *canister.Client
	loader      *Loader
	uploader    *Uploader
	environment Environment
	useProxy    bool
}

type StagerOption func(*Stager)

// WithEnvironment sets where resource URLs point for operations that derive
// their arguments from the canister.
func WithEnvironment(env Environment, useProxy bool) StagerOption {
	return func(s *Stager) {
		s.environment = env
		s.useProxy = useProxy
	}
}

func NewStager(logger logrus.FieldLogger, client *canister.Client, loader *Loader, uploader *Uploader, opts ...StagerOption) *Stager {
	s := &Stager{
		logger:      logger.WithField("component", "stager"),
		client:      client,
		loader:      loader,
		uploader:    uploader,
		environment: EnvLocal,
		useProxy:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stage registers every unit of cfg and uploads its libraries, the
// collection first unless skipCollection is set.
//
// A registration declined by the canister aborts the run with a
// *RegistrationError. Library failures do not: they are recorded in the
// result and the run carries on.
func (s *Stager) Stage(ctx context.Context, cfg *Config, skipCollection bool) (*StageResult, error) {
	units := make([]Meta, 0, len(cfg.NFTs)+1)
	if !skipCollection {
		units = append(units, cfg.Collection)
	}
	units = append(units, cfg.NFTs...)

	metrics := &Metrics{}
	result := newStageResult()
	for _, unit := range units {
		tokenID := unit.TokenID()
		logger := s.logger.WithField("token", tokenID)

		res, err := s.client.NFT.Stage(ctx, unit.Metadata)
		if err != nil {
			return nil, errors.Wrapf(err, "stage %q", tokenID)
		}
		if res.Err != nil {
			logger.WithError(res.Err).Error("Metadata declined.")
			return nil, &RegistrationError{TokenID: tokenID, Err: res.Err}
		}
		ur := &UnitResult{LibraryStage: []*ChunkUploadResult{}}
		if err := res.Decode(&ur.NFTStage); err != nil {
			logger.WithError(err).Warn("Unexpected stage answer.")
		}
		logger.Info("Metadata staged.")

		for _, lib := range unit.Library {
			lr, err := s.uploader.Upload(ctx, lib, tokenID, metrics, nil)
			if err != nil {
				return nil, err
			}
			ur.LibraryStage = append(ur.LibraryStage, lr)
		}
		result.Tokens = append(result.Tokens, tokenID)
		result.Response[tokenID] = ur
	}

	result.TotalFileSize = metrics.TotalFileSize
	s.logger.WithField("size", FormatSize(metrics.TotalFileSize)).Info("Total staged file size.")
	return result, nil
}

// StageCollection loads the files of args, builds the documents and stages
// the collection together with its NFTs.
func (s *Stager) StageCollection(ctx context.Context, args *Args) (*StageResult, error) {
	cfg, err := s.Build(ctx, args)
	if err != nil {
		return nil, err
	}
	return s.Stage(ctx, cfg, false)
}

// Build loads the files of args and builds the documents.
func (s *Stager) Build(ctx context.Context, args *Args) (*Config, error) {
	materialized, err := s.loader.Materialize(ctx, args)
	if err != nil {
		return nil, err
	}
	return BuildStageConfig(materialized)
}

// NFTsRequest adds NFTs to a collection already staged.
type NFTsRequest struct {
	NFTs     []NFT
	UseProxy *bool
	// Soulbound defaults to true.
	Soulbound *bool
}

// NFTArgs derives the staging arguments of new NFTs from the collection
// information held by the canister. Numbering continues after the highest
// existing token.
func (s *Stager) NFTArgs(ctx context.Context, req *NFTsRequest) (*Args, error) {
	info, err := s.client.Collection.Info(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read collection info")
	}
	useProxy := s.useProxy
	if req.UseProxy != nil {
		useProxy = *req.UseProxy
	}
	soulbound := true
	if req.Soulbound != nil {
		soulbound = *req.Soulbound
	}
	return &Args{
		Environment:           s.environment,
		UseProxy:              useProxy,
		CanisterID:            s.client.CanisterID,
		CollectionID:          info.ID,
		CollectionDisplayName: info.Name,
		TokenPrefix:           info.ID + "-",
		CreatorPrincipal:      info.CreatorPrincipal,
		OwnerID:               info.CreatorPrincipal,
		Namespace:             info.Namespace,
		Soulbound:             soulbound,
		StartNFTIndex:         info.LastNFTIndex + 1,
		CollectionFiles:       []CollectionFile{},
		NFTs:                  req.NFTs,
	}, nil
}

// StageNFTs stages new NFTs into an existing collection. The collection
// document itself is left alone.
func (s *Stager) StageNFTs(ctx context.Context, req *NFTsRequest) (*StageResult, error) {
	args, err := s.NFTArgs(ctx, req)
	if err != nil {
		return nil, err
	}
	cfg, err := s.Build(ctx, args)
	if err != nil {
		return nil, err
	}
	return s.Stage(ctx, cfg, true)
}

// StageLibraryAsset adds files to the libraries of an existing token, or of
// the collection when tokenID is empty. Sort values continue after the
// highest existing one and each file carries its own resource class on its
// first chunk.
func (s *Stager) StageLibraryAsset(ctx context.Context, files []File, tokenID string) (*StageResult, error) {
	info, err := s.client.Collection.Info(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read collection info")
	}
	nft, err := s.client.NFT.Get(ctx, tokenID)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %q", tokenID)
	}

	var lastSort uint64
	for _, lib := range nft.Metadata.Classes("library") {
		if n, ok := lib.Nat("sort"); ok && n > lastSort {
			lastSort = n
		}
	}

	files, err = s.loader.LoadFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	settings := &Settings{
		Args: &Args{
			Environment:           s.environment,
			UseProxy:              s.useProxy,
			CanisterID:            s.client.CanisterID,
			CollectionID:          info.ID,
			CollectionDisplayName: info.Name,
			Namespace:             info.Namespace,
		},
		FileMap: map[string]FileInfo{},
	}

	// Validate everything before the first upload.
	type item struct {
		lib   LibraryFile
		class candy.Class
	}
	items := make([]item, 0, len(files))
	sort := lastSort + 1
	for i := range files {
		f := &files[i]
		var (
			fi  FileInfo
			err error
		)
		if tokenID == "" {
			category := CategoryCollection
			if strings.HasSuffix(strings.ToLower(f.Filename), ".html") {
				category = CategoryDapp
			}
			fi, err = settings.collectionFile(&CollectionFile{File: *f, Category: category})
		} else {
			fi, err = settings.nftFile(f, tokenID, tokenIndex(tokenID))
		}
		if err != nil {
			return nil, err
		}
		cls, err := resourceClass(fi, f, sort)
		if err != nil {
			return nil, err
		}
		settings.FileMap[fi.ResourceURL] = fi
		settings.TotalFileSize += f.Size
		items = append(items, item{lib: LibraryFile{LibraryID: fi.LibraryID, File: *f}, class: cls})
		sort++
	}

	metrics := &Metrics{}
	ur := &UnitResult{NFTStage: tokenID, LibraryStage: []*ChunkUploadResult{}}
	for _, it := range items {
		lr, err := s.uploader.Upload(ctx, it.lib, tokenID, metrics, it.class)
		if err != nil {
			return nil, err
		}
		ur.LibraryStage = append(ur.LibraryStage, lr)
	}

	s.logger.WithFields(logrus.Fields{
		"token": tokenID,
		"size":  FormatSize(metrics.TotalFileSize),
	}).Info("Library assets staged.")

	result := newStageResult()
	result.Tokens = append(result.Tokens, tokenID)
	result.Response[tokenID] = ur
	result.TotalFileSize = metrics.TotalFileSize
	return result, nil
}

// tokenIndex extracts the numeric suffix of a token id, or 0.
func tokenIndex(tokenID string) int {
	n, err := strconv.Atoi(tokenID[strings.LastIndex(tokenID, "-")+1:])
	if err != nil {
		return 0
	}
	return n
}
