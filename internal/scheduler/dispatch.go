package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"yqhp/eval-fanout/internal/jobgraph"
)

// Report summarises one dispatch.
type Report struct {
	Submitted []string
	Failed    []string
	// Skipped units wait on a failed or skipped unit and were not submitted.
	Skipped []string
}

// OK reports whether every unit was submitted.
func (r *Report) OK() bool {
	return len(r.Failed) == 0 && len(r.Skipped) == 0
}

// Dispatch submits units in order. A failing unit is recorded and the next
// one is tried; units waiting on a failed or skipped unit are skipped. The
// returned error combines every submission failure.
func Dispatch(ctx context.Context, sub Submitter, units []*jobgraph.Unit, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	report := &Report{}
	var broken []string
	var errs error

	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return report, multierr.Append(errs, err)
		}

		if dep, ok := blockedBy(u, broken); ok {
			logger.Warn("job skipped, dependency not submitted",
				zap.String("job", u.Name),
				zap.String("dependency", dep))
			report.Skipped = append(report.Skipped, u.Name)
			broken = append(broken, u.Name)
			continue
		}

		if err := sub.Submit(ctx, u); err != nil {
			logger.Error("job submission failed", zap.String("job", u.Name), zap.Error(err))
			report.Failed = append(report.Failed, u.Name)
			broken = append(broken, u.Name)
			errs = multierr.Append(errs, fmt.Errorf("job %s: %w", u.Name, err))
			continue
		}
		report.Submitted = append(report.Submitted, u.Name)
	}
	return report, errs
}

func blockedBy(u *jobgraph.Unit, broken []string) (string, bool) {
	for _, name := range broken {
		if u.WaitsOn(name) {
			return name, true
		}
	}
	return "", false
}
