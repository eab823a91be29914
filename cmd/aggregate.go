package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wasabipesto/nice/internal/aggregation"
	"github.com/wasabipesto/nice/internal/model"
	"github.com/wasabipesto/nice/internal/store"
)

var aggregateWatch bool

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Recompute Base/Chunk rollups from canonical submissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		job := rollupJob(s)

		if !aggregateWatch {
			return job(ctx)
		}

		sched, err := aggregation.NewScheduler(job, cfg.Aggregation.CronSchedule, zap.L())
		if err != nil {
			return eris.Wrap(err, "build aggregation scheduler")
		}
		sched.Start()
		defer sched.Stop()

		zap.L().Info("aggregation scheduler running", zap.String("cron_schedule", cfg.Aggregation.CronSchedule))
		<-ctx.Done()
		return nil
	},
}

// rollupJob recomputes and persists the rollup for every Base and
// Chunk from their canonical (check_level-reaching) submissions.
func rollupJob(s store.Store) aggregation.Job {
	return func(ctx context.Context) error {
		bases, err := s.ListBases(ctx)
		if err != nil {
			return eris.Wrap(err, "list bases")
		}

		for _, base := range bases {
			fields, err := listAllFields(ctx, s, base.ID)
			if err != nil {
				return eris.Wrapf(err, "base %d: list fields", base.ID)
			}

			byChunk := make(map[int64][]model.Submission)
			var baseSubs []model.Submission
			for _, field := range fields {
				if field.CanonSubmissionID == nil {
					continue
				}
				sub, err := s.GetSubmission(ctx, *field.CanonSubmissionID)
				if err != nil {
					return eris.Wrapf(err, "field %d: get canon submission", field.ID)
				}
				if sub == nil || sub.SearchMode != model.ModeDetailed {
					continue
				}
				baseSubs = append(baseSubs, *sub)
				byChunk[field.ChunkID] = append(byChunk[field.ChunkID], *sub)
			}

			rollup := aggregation.Compute(baseSubs, base.B)
			if err := s.UpdateBaseRollup(ctx, base.ID, rollup.Distribution, rollup.NicenessMean, rollup.NicenessStdev, rollup.Numbers); err != nil {
				return eris.Wrapf(err, "base %d: update rollup", base.ID)
			}

			chunks, err := s.ListChunks(ctx, base.ID)
			if err != nil {
				return eris.Wrapf(err, "base %d: list chunks", base.ID)
			}
			for _, chunk := range chunks {
				chunkRollup := aggregation.Compute(byChunk[chunk.ID], base.B)
				if err := s.UpdateChunkRollup(ctx, chunk.ID, chunkRollup.Distribution, chunkRollup.NicenessMean, chunkRollup.NicenessStdev, chunkRollup.Numbers); err != nil {
					return eris.Wrapf(err, "chunk %d: update rollup", chunk.ID)
				}
			}

			zap.L().Info("aggregated base", zap.Uint32("base", base.B), zap.Int("num_chunks", len(chunks)))
		}

		return nil
	}
}

// listAllFields pages through every field of base at any check_level
// up to 2, since ListFields with a zero MaxCheckLvl returns only
// unchecked fields, one bounded page at a time.
func listAllFields(ctx context.Context, s store.Store, baseID int64) ([]model.Field, error) {
	const pageSize = 5000
	var all []model.Field
	offset := 0
	for {
		page, err := s.ListFields(ctx, store.FieldFilter{
			BaseID:      baseID,
			MaxCheckLvl: 2,
			Limit:       pageSize,
			Offset:      offset,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		offset += pageSize
	}
}

func init() {
	aggregateCmd.Flags().BoolVar(&aggregateWatch, "watch", false, "run continuously on the configured cron schedule instead of once")
	rootCmd.AddCommand(aggregateCmd)
}
