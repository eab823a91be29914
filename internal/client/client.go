// Package client implements the search pipeline: claim a Field from
// the coordination service, scan it with the digit-scan kernel, submit
// the result, and repeat — with retry/backoff and optional
// cross-client result validation.
package client

import (
	"context"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wasabipesto/nice/internal/config"
	"github.com/wasabipesto/nice/internal/executor"
	"github.com/wasabipesto/nice/internal/filter"
	"github.com/wasabipesto/nice/internal/kernel"
	"github.com/wasabipesto/nice/internal/model"
)

// claimedWork is one unit of work handed from the claimer stage to the
// executor stage.
type claimedWork struct {
	claim model.ClaimResponse
	mode  model.SearchMode
	start time.Time
}

// executedWork is one unit of work handed from the executor stage to
// the submitter stage.
type executedWork struct {
	claim  model.ClaimResponse
	mode   model.SearchMode
	result executor.Result
	start  time.Time
}

// Client runs the claim -> execute -> submit loop against a
// coordination service, one field at a time per pipeline stage so at
// most one claim request, one execution, and one submit request are
// ever outstanding simultaneously.
type Client struct {
	cfg  config.ClientConfig
	api  *apiClient
	exec *executor.Executor
	dlq  *deadLetterQueue
	mode model.SearchMode
}

// New builds a Client from cfg, selecting the CPU kernel unless GPU
// scanning was requested and is available.
func New(cfg config.ClientConfig) (*Client, error) {
	mode := model.ModeNiceonly
	if cfg.Mode == string(model.ModeDetailed) {
		mode = model.ModeDetailed
	}

	scanner, err := selectScanner(cfg)
	if err != nil {
		return nil, err
	}

	threads := cfg.Threads
	if threads < 1 {
		threads = runtime.NumCPU()
	}

	return &Client{
		cfg:  cfg,
		api:  newAPIClient(cfg.APIBase, cfg.APIMaxRetries),
		exec: executor.NewExecutor(scanner, threads),
		dlq:  newDeadLetterQueue(),
		mode: mode,
	}, nil
}

// selectScanner returns the GPU scanner when requested and available,
// falling back to the CPU scanner with a warning otherwise.
func selectScanner(cfg config.ClientConfig) (kernel.DigitScanner, error) {
	if !cfg.GPU {
		return kernel.NewCPUScanner(), nil
	}
	gpu, err := kernel.NewGPUScanner(cfg.GPUDevice)
	if err != nil {
		zap.L().Warn("GPU scanning requested but unavailable, falling back to CPU", zap.Error(err))
		return kernel.NewCPUScanner(), nil
	}
	return gpu, nil
}

// Run drives the pipeline until ctx is canceled or, when cfg.Repeat is
// false, a single field has been processed. Canceling ctx stops the
// claimer from requesting new work; the field already in flight drains
// through execution and submission before Run returns, so a SIGINT
// never discards completed-but-unsubmitted work.
func (c *Client) Run(ctx context.Context) error {
	if c.cfg.Benchmark != "" {
		return c.runBenchmark(ctx)
	}

	if c.cfg.Validate {
		if err := selfCheck(ctx, c.api, c.exec); err != nil {
			return err
		}
	}

	claimed := make(chan claimedWork, 1)
	executed := make(chan executedWork, 1)

	// gctx is detached from ctx so that canceling ctx only stops the
	// claimer; gctx is canceled when a stage returns an error.
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.Go(func() error { return c.runClaimer(ctx, gctx, claimed) })
	g.Go(func() error { return c.runExecutor(gctx, claimed, executed) })
	g.Go(func() error { return c.runSubmitter(gctx, executed) })

	if err := g.Wait(); err != nil && !eris.Is(err, context.Canceled) {
		return err
	}
	if n := c.dlq.len(); n > 0 {
		zap.L().Warn("search pipeline exiting with undelivered submissions", zap.Int("count", n))
	}
	return nil
}

// runClaimer requests one field at a time and hands it to the executor
// stage, stopping when outerCtx is canceled or (without repeat) after
// the first field. It deliberately watches outerCtx rather than gctx:
// once execution or submission fails and cancels gctx, the claimer
// must stop requesting new work immediately, but it must not be torn
// down by its own claimed channel send blocking forever.
func (c *Client) runClaimer(outerCtx, gctx context.Context, claimed chan<- claimedWork) error {
	defer close(claimed)

	for {
		if outerCtx.Err() != nil {
			return nil
		}

		resp, err := c.api.claim(gctx, c.mode)
		if err != nil {
			return eris.Wrap(err, "client: claim")
		}
		if resp == nil {
			if !c.cfg.Repeat {
				zap.L().Info("no field available")
				return nil
			}
			zap.L().Info("no field available, waiting before retrying claim")
			select {
			case <-outerCtx.Done():
				return nil
			case <-time.After(5 * time.Second):
				continue
			}
		}

		zap.L().Info("claimed field",
			zap.Int64("claim_id", resp.ClaimID),
			zap.Uint32("base", resp.Base),
			zap.String("range_start", resp.RangeStart.String()),
			zap.String("range_end", resp.RangeEnd.String()),
		)

		select {
		case claimed <- claimedWork{claim: *resp, mode: c.mode, start: time.Now()}:
		case <-gctx.Done():
			return nil
		}

		if !c.cfg.Repeat {
			return nil
		}
	}
}

// runExecutor scans each claimed field in turn and hands the result to
// the submitter stage.
func (c *Client) runExecutor(gctx context.Context, claimed <-chan claimedWork, executed chan<- executedWork) error {
	defer close(executed)

	for work := range claimed {
		start, err := executor.Uint128FromDecimal(work.claim.RangeStart)
		if err != nil {
			return eris.Wrap(err, "client: claimed range_start")
		}
		end, err := executor.Uint128FromDecimal(work.claim.RangeEnd)
		if err != nil {
			return eris.Wrap(err, "client: claimed range_end")
		}

		result, err := c.exec.Run(gctx, filter.Range{Start: start, End: end}, work.claim.Base, work.mode)
		if err != nil {
			return eris.Wrap(err, "client: execute range")
		}

		zap.L().Info("finished scanning field",
			zap.Int64("claim_id", work.claim.ClaimID),
			zap.Int("numbers_found", len(result.Numbers)),
			zap.Duration("elapsed", time.Since(work.start)),
		)

		select {
		case executed <- executedWork{claim: work.claim, mode: work.mode, result: result, start: work.start}:
		case <-gctx.Done():
			return nil
		}
	}
	return nil
}

// runSubmitter validates (when requested) and submits each executed
// field's result, parking anything that can't be delivered in the
// in-memory dead letter queue rather than dropping it.
func (c *Client) runSubmitter(gctx context.Context, executed <-chan executedWork) error {
	for work := range executed {
		if c.cfg.Validate {
			if err := checkSameField(gctx, c.api, work.claim.FieldID, work.result.Numbers); err != nil {
				zap.L().Error("validation mismatch, aborting submission", zap.Error(err))
				continue
			}
		}

		req := model.SubmissionRequest{
			ClaimID:       work.claim.ClaimID,
			Username:      c.cfg.Username,
			ClientVersion: Version,
			Numbers:       work.result.Numbers,
		}
		if work.mode == model.ModeDetailed {
			req.Distribution = work.result.Distribution.ToBuckets()
		}

		if err := c.api.submit(gctx, req); err != nil {
			zap.L().Error("failed to submit result after retries, parking in dead letter queue",
				zap.Int64("claim_id", work.claim.ClaimID),
				zap.Error(err),
			)
			c.dlq.add(model.Submission{
				ClaimID:      work.claim.ClaimID,
				FieldID:      work.claim.FieldID,
				SearchMode:   work.mode,
				SubmitTime:   time.Now().UTC(),
				ElapsedSecs:  time.Since(work.start).Seconds(),
				Username:     c.cfg.Username,
				Distribution: req.Distribution,
				Numbers:      req.Numbers,
			}, "submit", c.cfg.APIMaxRetries, err)
			continue
		}

		zap.L().Info("submitted result",
			zap.Int64("claim_id", work.claim.ClaimID),
			zap.Duration("elapsed", time.Since(work.start)),
		)
	}
	return nil
}

// Version identifies this client build to the coordination service.
const Version = "0.1.0"
