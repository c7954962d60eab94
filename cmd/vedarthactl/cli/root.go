// Package cli implements the vedarthactl commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/thetaxjournal/accountsvedartha/internal/tax"
)

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "vedarthactl",
		Short:         "Operate the accountsvedartha document engine",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}
	root.AddCommand(
		newSealCommand(),
		newUnsealCommand(),
		newRecoverCommand(),
		newWordsCommand(),
		newTotalsCommand(),
		newTokenCommand(),
		newSettingsCommand(),
		newJobsCommand(),
	)
	return root
}

func newWordsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "words <amount>",
		Short: "Spell an amount in Indian rupee words",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("words: %q is not a number", args[0])
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tax.RupeesInWords(amount))
			return err
		},
	}
}

type totalsInput struct {
	SupplierState string         `json:"supplierState"`
	PlaceOfSupply string         `json:"placeOfSupply"`
	Items         []tax.LineItem `json:"items"`
}

func newTotalsCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Compute invoice totals from a JSON document",
		Long:  "Reads {supplierState, placeOfSupply, items} from --file or stdin and prints the totals.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			var in totalsInput
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("totals: decode input: %w", err)
			}
			if err := tax.ValidateItems(in.Items); err != nil {
				return err
			}
			totals, err := tax.ComputeTotals(in.Items, in.SupplierState, in.PlaceOfSupply)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tax.ComputeResponse{Totals: totals, AmountInWords: tax.RupeesInWords(totals.GrandTotal)})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "input file (default stdin)")
	return cmd
}

func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(file)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
