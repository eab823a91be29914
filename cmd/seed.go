package main

import (
	"math/big"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wasabipesto/nice/internal/seed"
)

var (
	seedMinBase   uint32
	seedMaxBase   uint32
	seedChunkSize string
	seedFieldSize string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate Base/Chunk/Field rows for a range of numeric bases",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if seedMaxBase < seedMinBase {
			return eris.New("max-base must be >= min-base")
		}

		chunkSize := seedChunkSize
		if chunkSize == "" {
			chunkSize = cfg.Seed.ChunkSize
		}
		fieldSize := seedFieldSize
		if fieldSize == "" {
			fieldSize = cfg.Seed.FieldSize
		}

		chunkSizeInt, ok := new(big.Int).SetString(chunkSize, 10)
		if !ok {
			return eris.Errorf("invalid chunk size %q", chunkSize)
		}
		fieldSizeInt, ok := new(big.Int).SetString(fieldSize, 10)
		if !ok {
			return eris.Errorf("invalid field size %q", fieldSize)
		}

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		result, err := seed.Bases(ctx, s, seedMinBase, seedMaxBase, chunkSizeInt, fieldSizeInt)
		if err != nil {
			return err
		}

		zap.L().Info("seeding complete",
			zap.Uint32("min_base", seedMinBase),
			zap.Uint32("max_base", seedMaxBase),
			zap.Int("num_chunks", result.NumChunks),
			zap.Int("num_fields", result.NumFields),
		)
		return nil
	},
}

func init() {
	seedCmd.Flags().Uint32Var(&seedMinBase, "min-base", 10, "first base to seed (inclusive)")
	seedCmd.Flags().Uint32Var(&seedMaxBase, "max-base", 10, "last base to seed (inclusive)")
	seedCmd.Flags().StringVar(&seedChunkSize, "chunk-size", "", "chunk width as a decimal string (default from config)")
	seedCmd.Flags().StringVar(&seedFieldSize, "field-size", "", "field width as a decimal string (default from config)")
	rootCmd.AddCommand(seedCmd)
}
