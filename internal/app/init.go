// Package app wires the worker together and gates startup on a readiness
// check of every required external service.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openprocurement/auction-worker/internal/domain"
)

// Probe is one readiness check of an external dependency. Probes run once,
// are never retried, and every failure is reported.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// logCheck renders a probe outcome at the dedicated check severity the
// operators filter on.
func logCheck(logger *slog.Logger, name string, err error) {
	if err != nil {
		logger.Error(fmt.Sprintf("%s - failed", name), "severity", "CHECK", "error", err)
		return
	}
	logger.Info(fmt.Sprintf("%s - ok", name), "severity", "CHECK")
}

// CheckServices probes every dependency independently and collects all
// failures instead of short-circuiting, so a single pass reports every
// unreachable service. The first collected failure becomes the causal
// error of the aggregate.
func CheckServices(ctx context.Context, logger *slog.Logger, probes []Probe) error {
	var failures []error
	for _, probe := range probes {
		if probe.Check == nil {
			continue
		}
		err := probe.Check(ctx)
		logCheck(logger, probe.Name, err)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", probe.Name, err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("%w: %d of %d probes failed: %w",
			domain.ErrReadinessFailed, len(failures), len(probes), failures[0])
	}
	return nil
}
