package analytics

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/offer-goat/offer-goat/internal/stats"
	"github.com/offer-goat/offer-goat/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// database/sql keeps a connection opener goroutine per open DB.
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func setupStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *store.SQLiteStore, name string, conversions map[string][2]int) {
	t.Helper()
	ctx := context.Background()

	variants := []string{"A", "B"}
	_, err := s.CreateExperiment(ctx, &store.Experiment{Name: name, Variants: variants})
	require.NoError(t, err)

	var visits []store.Visit
	for _, variant := range variants {
		c := conversions[variant]
		for i := 0; i < c[1]; i++ {
			visits = append(visits, store.Visit{
				Experiment:    name,
				Variant:       variant,
				SessionID:     fmt.Sprintf("%s-%d", variant, i),
				ViewedOffer:   true,
				SubmittedForm: i < c[0],
			})
		}
	}
	_, err = s.ImportVisits(ctx, visits)
	require.NoError(t, err)
}

func TestService_Report(t *testing.T) {
	s := setupStore(t)
	seed(t, s, "landing", map[string][2]int{"A": {50, 1000}, "B": {80, 1000}})

	svc := NewService(s, stats.DefaultTierThresholds)
	report, err := svc.Report(context.Background(), "landing")
	require.NoError(t, err)

	require.NotNil(t, report.Verdict)
	assert.Equal(t, "B", report.Verdict.WinnerVariant)
	assert.Equal(t, 99, report.Verdict.Confidence)
	assert.Equal(t, 1000, report.Variants[0].Funnel.TotalViews)
}

func TestService_ReportNotFound(t *testing.T) {
	svc := NewService(setupStore(t), stats.DefaultTierThresholds)

	_, err := svc.Report(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_Reports(t *testing.T) {
	s := setupStore(t)
	for i := 0; i < 6; i++ {
		seed(t, s, fmt.Sprintf("exp-%d", i), map[string][2]int{"A": {i, 20}, "B": {2 * i, 20}})
	}

	svc := NewService(s, stats.DefaultTierThresholds)
	reports, err := svc.Reports(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 6)

	exps, err := s.ListExperiments(context.Background())
	require.NoError(t, err)
	for i, exp := range exps {
		assert.Equal(t, exp.Name, reports[i].Experiment)
		assert.Equal(t, 20, reports[i].Variants[0].Funnel.TotalViews)
	}
}

type failingSource struct {
	Source
	exps []*store.Experiment
}

func (f failingSource) ListExperiments(context.Context) ([]*store.Experiment, error) {
	return f.exps, nil
}

func (f failingSource) ListVisits(_ context.Context, experiment, _ string) ([]store.Visit, error) {
	if experiment == "broken" {
		return nil, errors.New("disk on fire")
	}
	return nil, nil
}

func TestService_ReportsPropagatesErrors(t *testing.T) {
	src := failingSource{exps: []*store.Experiment{
		{Name: "ok", Variants: []string{"A", "B"}},
		{Name: "broken", Variants: []string{"A", "B"}},
	}}

	_, err := NewService(src, stats.DefaultTierThresholds).Reports(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestService_Assign(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	_, err := s.CreateExperiment(ctx, &store.Experiment{Name: "landing", Variants: []string{"A", "B"}})
	require.NoError(t, err)

	svc := NewService(s, stats.DefaultTierThresholds)
	first, err := svc.Assign(ctx, "landing", "visitor-1")
	require.NoError(t, err)
	assert.Contains(t, []string{"A", "B"}, first)

	again, err := svc.Assign(ctx, "landing", "visitor-1")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, s.SetWinner(ctx, "landing", "B"))
	winner, err := svc.Assign(ctx, "landing", "visitor-1")
	require.NoError(t, err)
	assert.Equal(t, "B", winner)

	_, err = svc.Assign(ctx, "missing", "visitor-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
