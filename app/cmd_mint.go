package app

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewCmdMint(out io.Writer, logger logrus.FieldLogger, config *Config) *cobra.Command {
	var (
		owner      string
		canisterID string
	)
	cmd := &cobra.Command{
		Use:   "mint <token>...",
		Short: "Mint staged tokens",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := canisterClient(logger, config, canisterID)
			if err != nil {
				return err
			}
			for _, tokenID := range args {
				minted, err := client.NFT.Mint(context.Background(), tokenID, owner)
				if err != nil {
					return err
				}
				logger.WithField("token", tokenID).Info("Token minted.")
				fmt.Fprintln(out, minted)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Principal receiving the tokens, the caller by default")
	cmd.Flags().StringVar(&canisterID, "canister", "", "Canister id, defaults to canister.id")
	return cmd
}
