package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segyhp/dealer-loan-engine/internal/metrics"
	"github.com/segyhp/dealer-loan-engine/internal/repository"
	"github.com/segyhp/dealer-loan-engine/pkg/clock"
	"github.com/segyhp/dealer-loan-engine/pkg/utils"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// PenaltyAccruer charges one loan's overdue penalty
type PenaltyAccruer interface {
	AccruePenalty(ctx context.Context, loanRef string) (*PenaltyOutcome, error)
}

// LoanFailure is a loan the pass could not process
type LoanFailure struct {
	LoanRef string `json:"loan_ref"`
	Error   string `json:"error"`
}

// RunReport summarizes one delinquency pass
type RunReport struct {
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	Scanned      int             `json:"scanned"`
	Accrued      int             `json:"accrued"`
	Unchanged    int             `json:"unchanged"`
	Failed       int             `json:"failed"`
	TotalPenalty decimal.Decimal `json:"total_penalty"`
	Failures     []LoanFailure   `json:"failures,omitempty"`
}

// DelinquencyService walks overdue active loans and accrues their penalties
type DelinquencyService struct {
	loans     repository.LoanRepository
	accruer   PenaltyAccruer
	clock     clock.Clock
	log       *slog.Logger
	metrics   *metrics.Metrics
	batchSize int
	workers   int
}

func NewDelinquencyService(
	loans repository.LoanRepository,
	accruer PenaltyAccruer,
	clk clock.Clock,
	log *slog.Logger,
	m *metrics.Metrics,
	batchSize, workers int,
) *DelinquencyService {
	if batchSize <= 0 {
		batchSize = 100
	}
	if workers <= 0 {
		workers = 1
	}
	return &DelinquencyService{
		loans:     loans,
		accruer:   accruer,
		clock:     clk,
		log:       log,
		metrics:   m,
		batchSize: batchSize,
		workers:   workers,
	}
}

// Run makes one pass over every active loan whose next payment date has
// passed. Loans are fetched in keyset batches and each batch is processed by
// a bounded pool of workers. A loan that fails is logged and reported and the
// pass moves on; only a failure to list loans or a done context ends it early.
func (s *DelinquencyService) Run(ctx context.Context) (*RunReport, error) {
	started := time.Now()
	asOf := s.clock.Now()
	cutoff := utils.StartOfDay(asOf)
	report := &RunReport{StartedAt: asOf, TotalPenalty: decimal.Zero}
	var mu sync.Mutex

	finish := func(outcome string) {
		report.FinishedAt = s.clock.Now()
		s.metrics.DelinquencyRuns.WithLabelValues(outcome).Inc()
		s.metrics.DelinquencyLatency.Observe(time.Since(started).Seconds())
	}

	after := ""
	for {
		if err := ctx.Err(); err != nil {
			finish("aborted")
			return report, err
		}

		batch, err := s.loans.ListOverdue(ctx, cutoff, after, s.batchSize)
		if err != nil {
			s.log.ErrorContext(ctx, "list overdue loans", "after", after, "error", err)
			finish("failed")
			return report, err
		}
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for _, loan := range batch {
			loanRef := loan.LoanRef
			g.Go(func() error {
				outcome, err := s.accruer.AccruePenalty(gctx, loanRef)

				mu.Lock()
				defer mu.Unlock()
				report.Scanned++
				switch {
				case err != nil:
					report.Failed++
					report.Failures = append(report.Failures, LoanFailure{LoanRef: loanRef, Error: err.Error()})
					s.metrics.DelinquencyLoans.WithLabelValues("failed").Inc()
					s.log.ErrorContext(gctx, "accrue penalty", "loan_ref", loanRef, "error", err)
				case outcome.Result.Accrued():
					report.Accrued++
					report.TotalPenalty = report.TotalPenalty.Add(outcome.Result.Delta)
					s.metrics.DelinquencyLoans.WithLabelValues("accrued").Inc()
				default:
					report.Unchanged++
					s.metrics.DelinquencyLoans.WithLabelValues("unchanged").Inc()
				}
				// a single loan's failure never cancels its siblings
				return nil
			})
		}
		_ = g.Wait()

		after = batch[len(batch)-1].LoanRef
		if len(batch) < s.batchSize {
			break
		}
	}

	outcome := "success"
	if report.Failed > 0 {
		outcome = "partial"
	}
	finish(outcome)

	s.log.InfoContext(ctx, "delinquency pass finished",
		"scanned", report.Scanned,
		"accrued", report.Accrued,
		"failed", report.Failed,
		"total_penalty", report.TotalPenalty.String(),
		"duration", time.Since(started),
	)
	return report, nil
}
