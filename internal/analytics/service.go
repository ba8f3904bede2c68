// Package analytics loads experiment data from the store and turns it into
// reports.
package analytics

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/offer-goat/offer-goat/internal/assign"
	"github.com/offer-goat/offer-goat/internal/stats"
	"github.com/offer-goat/offer-goat/internal/store"
)

// maxConcurrentReports bounds how many experiments are read at once.
const maxConcurrentReports = 4

// Source is the subset of store.Store the service reads from.
type Source interface {
	GetExperiment(ctx context.Context, name string) (*store.Experiment, error)
	ListExperiments(ctx context.Context) ([]*store.Experiment, error)
	ListVisits(ctx context.Context, experiment, variant string) ([]store.Visit, error)
}

type Service struct {
	source     Source
	thresholds stats.TierThresholds
}

func NewService(source Source, thresholds stats.TierThresholds) *Service {
	return &Service{source: source, thresholds: thresholds}
}

// Report analyzes a single experiment. It returns store.ErrNotFound when
// the experiment does not exist.
func (s *Service) Report(ctx context.Context, name string) (*stats.Report, error) {
	exp, err := s.source.GetExperiment(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, eris.Wrapf(err, "analytics: load experiment %s", name)
	}
	return s.analyze(ctx, exp)
}

// Reports analyzes every experiment, newest first.
func (s *Service) Reports(ctx context.Context) ([]*stats.Report, error) {
	exps, err := s.source.ListExperiments(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: list experiments")
	}

	reports := make([]*stats.Report, len(exps))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReports)

	for i, exp := range exps {
		g.Go(func() error {
			report, err := s.analyze(ctx, exp)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// Assign returns the variant a visitor should see for an experiment.
func (s *Service) Assign(ctx context.Context, name, visitorID string) (string, error) {
	exp, err := s.source.GetExperiment(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", err
		}
		return "", eris.Wrapf(err, "analytics: load experiment %s", name)
	}
	return assign.Variant(exp, visitorID), nil
}

func (s *Service) analyze(ctx context.Context, exp *store.Experiment) (*stats.Report, error) {
	visits, err := s.source.ListVisits(ctx, exp.Name, "")
	if err != nil {
		return nil, eris.Wrapf(err, "analytics: load visits for %s", exp.Name)
	}

	report := stats.Analyze(exp, visits, s.thresholds)
	zap.L().Debug("analytics: report built",
		zap.String("experiment", exp.Name),
		zap.Int("visits", len(visits)),
	)
	return report, nil
}
