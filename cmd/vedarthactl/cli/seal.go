package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thetaxjournal/accountsvedartha/internal/recovery"
	"github.com/thetaxjournal/accountsvedartha/internal/seal"
)

func newSealCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seal [json]",
		Short: "Seal a JSON record into an authenticity code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			if len(args) == 1 {
				data = []byte(args[0])
			} else {
				var err error
				if data, err = readInput(cmd, file); err != nil {
					return err
				}
			}
			var record map[string]any
			if err := json.Unmarshal(data, &record); err != nil {
				return fmt.Errorf("seal: record must be a JSON object: %w", err)
			}
			code, err := seal.New().Seal(record)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), code)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the record from a file instead of stdin")
	return cmd
}

type openedOutput struct {
	SealedAt time.Time      `json:"sealedAt"`
	Record   map[string]any `json:"record"`
	Strategy string         `json:"strategy,omitempty"`
}

func newUnsealCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unseal <code>",
		Short: "Decode an authenticity code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opened, ok := seal.Open(strings.TrimSpace(args[0]))
			if !ok {
				return errors.New("unseal: not a sealed code")
			}
			return printJSON(cmd.OutOrStdout(), openedOutput{SealedAt: opened.SealedAt, Record: opened.Record})
		},
	}
}

func newRecoverCommand() *cobra.Command {
	var dpi float64
	cmd := &cobra.Command{
		Use:   "recover <file>",
		Short: "Find and decode the authenticity code in a photo, scan or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			scanner := recovery.NewScanner(recovery.NewQRDecoder(), seal.New(),
				recovery.WithRasterizer(recovery.NewPageRasterizer(dpi)))
			result, err := scanner.RecoverBytes(cmd.Context(), data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), openedOutput{
				SealedAt: result.SealedAt,
				Record:   result.Record,
				Strategy: result.Strategy,
			})
		},
	}
	cmd.Flags().Float64Var(&dpi, "dpi", 200, "rasterization resolution for PDF input")
	return cmd
}
