package app

import (
	"context"
	"encoding/json"
	"io"

	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ORIGYN-SA/mintgo/canister"
	"github.com/ORIGYN-SA/mintgo/journal"
)

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRaw renders an opaque canister payload.
func printRaw(out io.Writer, raw []byte) error {
	v, err := canister.DecodeRaw(raw)
	if err != nil {
		return err
	}
	return printJSON(out, v)
}

// queryFunc is a read-only call against the canister.
type queryFunc func(ctx context.Context, c *canister.Client, args []string) (interface{}, error)

func NewCmdQuery(out io.Writer, logger logrus.FieldLogger, config *Config) *cobra.Command {
	var canisterID string
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read the state of the canister",
	}
	cmd.PersistentFlags().StringVar(&canisterID, "canister", "", "Canister id, defaults to canister.id")

	sub := func(use, short string, args cobra.PositionalArgs, fn queryFunc) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := canisterClient(logger, config, canisterID)
				if err != nil {
					return err
				}
				v, err := fn(context.Background(), client, args)
				if err != nil {
					return err
				}
				return printJSON(out, v)
			},
		}
	}

	cmd.AddCommand(sub("balance [principal]", "Print what an account holds, the caller by default", cobra.MaximumNArgs(1),
		func(ctx context.Context, c *canister.Client, args []string) (interface{}, error) {
			principal := ""
			if len(args) > 0 {
				principal = args[0]
			}
			return c.Balance.Of(ctx, principal)
		}))
	cmd.AddCommand(sub("collection", "Print the collection information", cobra.NoArgs,
		func(ctx context.Context, c *canister.Client, args []string) (interface{}, error) {
			return c.Collection.Info(ctx)
		}))
	cmd.AddCommand(sub("nft <token>", "Print the metadata of a token", cobra.ExactArgs(1),
		func(ctx context.Context, c *canister.Client, args []string) (interface{}, error) {
			return c.NFT.Get(ctx, args[0])
		}))
	cmd.AddCommand(sub("libraries [token]", "Print the libraries of a token, or of the collection", cobra.MaximumNArgs(1),
		func(ctx context.Context, c *canister.Client, args []string) (interface{}, error) {
			if len(args) == 0 {
				return c.Collection.Libraries(ctx)
			}
			return c.NFT.Libraries(ctx, args[0])
		}))
	cmd.AddCommand(sub("dapps", "Print the dapps of the collection", cobra.NoArgs,
		func(ctx context.Context, c *canister.Client, args []string) (interface{}, error) {
			return c.Collection.Dapps(ctx)
		}))
	cmd.AddCommand(sub("cycles", "Print the cycles balance of the canister", cobra.NoArgs,
		func(ctx context.Context, c *canister.Client, args []string) (interface{}, error) {
			return c.Canister.Cycles(ctx)
		}))
	cmd.AddCommand(sub("storage", "Print the storage allocation of the canister", cobra.NoArgs,
		func(ctx context.Context, c *canister.Client, args []string) (interface{}, error) {
			return c.Canister.Storage(ctx)
		}))
	cmd.AddCommand(newCmdQueryHistory(out, logger, config, &canisterID))
	cmd.AddCommand(newCmdQueryRuns(out, logger, config))

	return cmd
}

func newCmdQueryHistory(out io.Writer, logger logrus.FieldLogger, config *Config, canisterID *string) *cobra.Command {
	var start, end uint64
	cmd := &cobra.Command{
		Use:   "history <token>",
		Short: "Print the transactions of a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := canisterClient(logger, config, *canisterID)
			if err != nil {
				return err
			}
			var from, to *uint64
			if cmd.Flags().Changed("start") {
				from = &start
			}
			if cmd.Flags().Changed("end") {
				to = &end
			}
			txs, err := client.NFT.History(context.Background(), args[0], from, to)
			if err != nil {
				return err
			}
			return printJSON(out, txs)
		},
	}
	cmd.Flags().Uint64Var(&start, "start", 0, "First transaction index")
	cmd.Flags().Uint64Var(&end, "end", 0, "Last transaction index")
	return cmd
}

func newCmdQueryRuns(out io.Writer, logger logrus.FieldLogger, config *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "Print the staging runs recorded in the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.Journal.Table == "" {
				return errors.New("journal table is not configured (journal.table)")
			}
			sess, err := awsSession(logger, config.AWS.DynamoDBProfile, config.AWS.DynamoDBEndpoint)
			if err != nil {
				return err
			}
			runs, err := journal.NewDynamoDB(dynamodb.New(sess), config.Journal.Table).List(context.Background())
			if err != nil {
				return err
			}
			return printJSON(out, runs)
		},
	}
}
