package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"

	"github.com/oklog/run"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ORIGYN-SA/mintgo/journal"
	"github.com/ORIGYN-SA/mintgo/stage"
	"github.com/ORIGYN-SA/mintgo/stageconfig"
)

func NewCmdStage(out io.Writer, logger logrus.FieldLogger, config *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Stage collections, NFTs and library assets",
	}
	cmd.AddCommand(newCmdStageCollection(out, logger, config))
	cmd.AddCommand(newCmdStageNFTs(out, logger, config))
	cmd.AddCommand(newCmdStageLibrary(out, logger, config))
	return cmd
}

func newCmdStageCollection(out io.Writer, logger logrus.FieldLogger, config *Config) *cobra.Command {
	var (
		file   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Stage a collection and its NFTs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("parameter empty")
			}
			stageArgs, err := stageconfig.Load(fs, file)
			if err != nil {
				return err
			}
			if dryRun {
				return doBuild(out, logger, config, stageArgs)
			}
			command := "stage collection"
			return doStage(out, logger, config, command, stageArgs.CanisterID, stageArgs.CollectionID,
				func(ctx context.Context, s *stage.Stager) (*stage.StageResult, error) {
					return s.StageCollection(ctx, stageArgs)
				})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Stage configuration (JSON or YAML)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the metadata documents without staging them")
	return cmd
}

func newCmdStageNFTs(out io.Writer, logger logrus.FieldLogger, config *Config) *cobra.Command {
	var (
		file       string
		canisterID string
		soulbound  bool
		useProxy   bool
	)
	cmd := &cobra.Command{
		Use:   "nfts",
		Short: "Stage new NFTs into a staged collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("parameter empty")
			}
			nfts, err := stageconfig.LoadNFTs(fs, file)
			if err != nil {
				return err
			}
			req := &stage.NFTsRequest{NFTs: nfts}
			if cmd.Flags().Changed("soulbound") {
				req.Soulbound = &soulbound
			}
			if cmd.Flags().Changed("use-proxy") {
				req.UseProxy = &useProxy
			}
			return doStage(out, logger, config, "stage nfts", canisterID, "",
				func(ctx context.Context, s *stage.Stager) (*stage.StageResult, error) {
					return s.StageNFTs(ctx, req)
				})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "NFT definitions (JSON or YAML)")
	cmd.Flags().StringVar(&canisterID, "canister", "", "Canister id, defaults to canister.id")
	cmd.Flags().BoolVar(&soulbound, "soulbound", true, "Mark the new NFTs as soulbound")
	cmd.Flags().BoolVar(&useProxy, "use-proxy", true, "Point local resource URLs at the buffering proxy")
	return cmd
}

func newCmdStageLibrary(out io.Writer, logger logrus.FieldLogger, config *Config) *cobra.Command {
	var (
		files      []string
		tokenID    string
		canisterID string
		immutable  bool
	)
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Add library assets to a token, or to the collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(files) == 0 {
				return errors.New("parameter empty")
			}
			assets := make([]stage.File, 0, len(files))
			for _, path := range files {
				assets = append(assets, stage.File{
					Filename:  filepath.Base(path),
					Path:      path,
					Immutable: immutable,
				})
			}
			return doStage(out, logger, config, "stage library", canisterID, "",
				func(ctx context.Context, s *stage.Stager) (*stage.StageResult, error) {
					return s.StageLibraryAsset(ctx, assets, tokenID)
				})
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "Asset to add, repeatable")
	cmd.Flags().StringVarP(&tokenID, "token", "t", "", "Token id, empty for the collection")
	cmd.Flags().StringVar(&canisterID, "canister", "", "Canister id, defaults to canister.id")
	cmd.Flags().BoolVar(&immutable, "immutable", false, "Flag the libraries as immutable")
	return cmd
}

// doBuild prints the documents of a staging run without contacting the
// canister.
func doBuild(out io.Writer, logger logrus.FieldLogger, config *Config, args *stage.Args) error {
	objects, err := objectStorage(logger, config)
	if err != nil {
		return err
	}
	loader := stage.NewLoader(logger, fs, objects, nil)
	materialized, err := loader.Materialize(context.Background(), args)
	if err != nil {
		return err
	}
	cfg, err := stage.BuildStageConfig(materialized)
	if err != nil {
		return err
	}
	return printJSON(out, cfg)
}

type stageFunc func(context.Context, *stage.Stager) (*stage.StageResult, error)

// doStage runs fn next to the metrics endpoint and the signal handler. The
// run is recorded in the journal whatever its outcome.
func doStage(out io.Writer, logger logrus.FieldLogger, config *Config, command, canisterID, collectionID string, fn stageFunc) error {
	client, err := canisterClient(logger, config, canisterID)
	if err != nil {
		return err
	}
	objects, err := objectStorage(logger, config)
	if err != nil {
		return err
	}
	j, err := runJournal(logger, config)
	if err != nil {
		return err
	}

	counters := stage.NewCounters()
	registry := prometheus.NewRegistry()
	registry.MustRegister(counters.Collectors()...)

	stager := stage.NewStager(
		logger,
		client,
		stage.NewLoader(logger, fs, objects, nil),
		stage.NewUploader(logger, client.NFT, stage.WithCounters(counters)),
		stage.WithEnvironment(config.Environment(), config.Canister.UseProxy),
	)

	record := journal.NewRun(command, client.CanisterID, collectionID)
	logger = logger.WithField("run", record.ID)

	var result *stage.StageResult
	var g run.Group
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			var err error
			result, err = fn(ctx, stager)
			return err
		}, func(error) {
			cancel()
		})
	}
	if config.Metrics.Addr != "" {
		ln, err := net.Listen("tcp", config.Metrics.Addr)
		if err != nil {
			return err
		}
		logger.WithField("addr", ln.Addr().String()).Info("Metrics server listening")

		g.Add(func() error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			return http.Serve(ln, mux)
		}, func(error) {
			ln.Close()
		})
	}
	{
		cancel := make(chan struct{})
		g.Add(func() error {
			return interrupt(cancel, func() { logProgress(logger, registry) })
		}, func(error) {
			close(cancel)
		})
	}
	runErr := g.Run()

	record.Finish(result, runErr)
	if err := j.Record(context.Background(), record); err != nil {
		logger.WithError(err).Error("Run could not be recorded.")
	}
	if runErr != nil {
		return runErr
	}

	if err := printJSON(out, result); err != nil {
		return err
	}
	if failures := result.Failures(); len(failures) > 0 {
		for _, f := range failures {
			logger.WithFields(logrus.Fields{"token": f.TokenID, "library": f.LibraryID}).Error(f.Err)
		}
		return errors.Errorf("%d libraries could not be staged", len(failures))
	}
	return nil
}

// logProgress logs the current value of the staging counters.
func logProgress(logger logrus.FieldLogger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		logger.WithError(err).Warn("Metrics could not be gathered.")
		return
	}
	fields := logrus.Fields{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fields[mf.GetName()] = m.GetCounter().GetValue()
		}
	}
	logger.WithFields(fields).Info("Staging progress.")
}
