package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ORIGYN-SA/mintgo/canister"
)

func NewCmdMarket(out io.Writer, logger logrus.FieldLogger, config *Config) *cobra.Command {
	var canisterID string
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Sell tokens and manage escrows",
	}
	cmd.PersistentFlags().StringVar(&canisterID, "canister", "", "Canister id, defaults to canister.id")

	client := func() (*canister.Client, error) {
		return canisterClient(logger, config, canisterID)
	}
	cmd.AddCommand(newCmdMarketAuction(out, client))
	cmd.AddCommand(newCmdMarketEndSale(out, client))
	cmd.AddCommand(newCmdMarketEscrow(out, client))
	cmd.AddCommand(newCmdMarketEscrowAction(out, client, "withdraw", "Withdraw an escrow back to the caller"))
	cmd.AddCommand(newCmdMarketEscrowAction(out, client, "reject", "Reject an escrow made for a token"))
	cmd.AddCommand(&cobra.Command{
		Use:   "deposit-account",
		Short: "Print the account to fund before depositing an escrow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			account, err := c.Market.DepositAccount(context.Background())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, account)
			return err
		},
	})
	return cmd
}

// parseEnd accepts a duration from now or an RFC 3339 date.
func parseEnd(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return time.Time{}, errors.Errorf("end %q is not in the future", s)
		}
		return now.Add(d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.Errorf("end %q is neither a duration nor a RFC 3339 date", s)
	}
	return t, nil
}

func newCmdMarketAuction(out io.Writer, client func() (*canister.Client, error)) *cobra.Command {
	var (
		req canister.AuctionRequest
		end string
	)
	cmd := &cobra.Command{
		Use:   "auction <token>",
		Short: "Start an auction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endDate, err := parseEnd(end, time.Now())
			if err != nil {
				return err
			}
			c, err := client()
			if err != nil {
				return err
			}
			req.TokenID = args[0]
			req.EndDate = endDate
			resp, err := c.Market.StartAuction(context.Background(), &req)
			if err != nil {
				return err
			}
			return printJSON(out, resp)
		},
	}
	cmd.Flags().Float64Var(&req.StartPrice, "start-price", 0, "Start price in tokens")
	cmd.Flags().Float64Var(&req.PriceStep, "step", 0, "Minimum bid increase in tokens")
	cmd.Flags().Float64Var(&req.BuyNow, "buy-now", 0, "Buy now price in tokens, zero for none")
	cmd.Flags().StringVar(&req.BrokerID, "broker", "", "Broker principal")
	cmd.Flags().StringVar(&end, "end", "168h", "End of the auction, duration or RFC 3339 date")
	return cmd
}

func newCmdMarketEndSale(out io.Writer, client func() (*canister.Client, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "end-sale <token>",
		Short: "End the running sale of a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			raw, err := c.Market.EndSale(context.Background(), args[0])
			if err != nil {
				return err
			}
			return printRaw(out, raw)
		},
	}
}

func newCmdMarketEscrow(out io.Writer, client func() (*canister.Client, error)) *cobra.Command {
	var req canister.EscrowRequest
	cmd := &cobra.Command{
		Use:   "escrow <token>",
		Short: "Deposit an escrow to bid on a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Seller == "" {
				return errors.New("seller is required")
			}
			c, err := client()
			if err != nil {
				return err
			}
			req.TokenID = args[0]
			raw, err := c.Market.DepositEscrow(context.Background(), &req)
			if err != nil {
				return err
			}
			return printRaw(out, raw)
		},
	}
	cmd.Flags().Float64Var(&req.Amount, "amount", 0, "Amount in tokens")
	cmd.Flags().StringVar(&req.Seller, "seller", "", "Seller principal")
	cmd.Flags().StringVar(&req.SaleID, "sale-id", "", "Sale the escrow is made for")
	cmd.Flags().Uint64Var(&req.TransactionHeight, "height", 0, "Block height of the ledger transfer funding the escrow")
	return cmd
}

func newCmdMarketEscrowAction(out io.Writer, client func() (*canister.Client, error), use, short string) *cobra.Command {
	var (
		amount        uint64
		buyer, seller string
	)
	cmd := &cobra.Command{
		Use:   use + " <token>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			req := &canister.EscrowActionRequest{
				TokenID: args[0],
				Amount:  amount,
				Buyer:   canister.Account{Principal: buyer},
				Seller:  canister.Account{Principal: seller},
			}
			var raw []byte
			if use == "withdraw" {
				raw, err = c.Market.WithdrawEscrow(context.Background(), req)
			} else {
				raw, err = c.Market.RejectEscrow(context.Background(), req)
			}
			if err != nil {
				return err
			}
			return printRaw(out, raw)
		},
	}
	cmd.Flags().Uint64Var(&amount, "amount", 0, "Amount in token units")
	cmd.Flags().StringVar(&buyer, "buyer", "", "Buyer principal")
	cmd.Flags().StringVar(&seller, "seller", "", "Seller principal")
	return cmd
}
