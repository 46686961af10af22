package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
	"github.com/couchcryptid/pivot-coverage-service/internal/extract"
	"github.com/couchcryptid/pivot-coverage-service/internal/kmlfile"
)

func extractCommand() *cobra.Command {
	opts := extract.DefaultOptions()
	var logLevel string

	cmd := &cobra.Command{
		Use:   "extract <file.kmz>",
		Short: "Print the entities found in a KMZ or KML file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := kmlfile.Parse(data)
			if err != nil {
				return err
			}

			// Diagnostics go to stderr so stdout stays valid JSON.
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			ents, err := extract.New(opts, logger).Extract(doc)
			if err != nil && !errors.Is(err, domain.ErrAntennaNotFound) {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(ents); encErr != nil {
				return fmt.Errorf("encode entities: %w", encErr)
			}
			return err
		},
	}
	cmd.Flags().Float64Var(&opts.MatchDistance, "match-distance", opts.MatchDistance, "degrees within which a circle center matches an existing pivot")
	cmd.Flags().BoolVar(&opts.StrictAntenna, "strict-antenna", false, "fail when more than one antenna candidate is found")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level for extraction diagnostics")
	return cmd
}
