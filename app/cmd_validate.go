package app

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ORIGYN-SA/mintgo/stageconfig"
)

func NewCmdValidate(out io.Writer) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a stage configuration document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return doValidate(out, file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "File")

	return cmd
}

func doValidate(out io.Writer, file string) error {
	if file == "" {
		return errors.New("parameter empty")
	}
	args, err := stageconfig.Load(fs, file)
	if err != nil {
		if verr, ok := errors.Cause(err).(*stageconfig.ValidationError); ok {
			fmt.Fprintln(out, "The stage configuration is invalid!")
			for _, issue := range verr.Errors {
				fmt.Fprintf(out, "%s: %s\n", issue.Path, issue.Message)
			}
		}
		return err
	}
	instances := 0
	for _, nft := range args.NFTs {
		if nft.Quantity > 1 {
			instances += nft.Quantity
		} else {
			instances++
		}
	}
	fmt.Fprintf(out, "Stage configuration found! Collection %q, %d collection files, %d NFT definitions, %d NFTs.\n",
		args.CollectionID, len(args.CollectionFiles), len(args.NFTs), instances)
	return nil
}
