package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/offer-goat/offer-goat/internal/store"
)

func testDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func runCLI(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--db", db))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, db string, args ...string) string {
	t.Helper()

	out, err := runCLI(t, db, args...)
	require.NoError(t, err, out)
	return out
}

func seedVisits(t *testing.T, db, experiment, variant string, conversions, total int) {
	t.Helper()

	s, err := store.Open(db)
	require.NoError(t, err)
	defer s.Close()

	visits := make([]store.Visit, total)
	for i := range visits {
		visits[i] = store.Visit{
			Experiment:    experiment,
			Variant:       variant,
			SessionID:     fmt.Sprintf("%s-%d", variant, i),
			DeviceType:    store.DeviceDesktop,
			ViewedHero:    true,
			ViewedOffer:   i%2 == 0,
			SubmittedForm: i < conversions,
		}
	}
	_, err = s.ImportVisits(context.Background(), visits)
	require.NoError(t, err)
}

func getExperiment(t *testing.T, db, name string) *store.Experiment {
	t.Helper()

	s, err := store.Open(db)
	require.NoError(t, err)
	defer s.Close()

	exp, err := s.GetExperiment(context.Background(), name)
	require.NoError(t, err)
	return exp
}

func TestCreate(t *testing.T) {
	db := testDB(t)

	out := mustRun(t, db, "create", "cash-offer", "--variants", "ultra-simple, email-first", "--weights", "70,30", "--goal", "Offer form submitted")
	assert.Contains(t, out, "Created experiment 'cash-offer' with 2 variants")
	assert.Contains(t, out, "ultra-simple (control)  weight 70")

	exp := getExperiment(t, db, "cash-offer")
	assert.Equal(t, []string{"ultra-simple", "email-first"}, exp.Variants)
	assert.Equal(t, []float64{70, 30}, exp.Weights)
	assert.Equal(t, "Offer form submitted", exp.ConversionGoal)
}

func TestCreate_Invalid(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "create", "cash-offer", "--variants", "A,B")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"one variant", []string{"create", "x", "--variants", "A"}, "at least 2 variants"},
		{"duplicate variant", []string{"create", "x", "--variants", "A,A"}, "duplicate variant"},
		{"weight count", []string{"create", "x", "--variants", "A,B", "--weights", "1"}, "1 weights for 2 variants"},
		{"negative weight", []string{"create", "x", "--variants", "A,B", "--weights", "1,-1"}, "must not be negative"},
		{"zero weights", []string{"create", "x", "--variants", "A,B", "--weights", "0,0"}, "must be positive"},
		{"exists", []string{"create", "cash-offer", "--variants", "A,B"}, "already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, db, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestList(t *testing.T) {
	db := testDB(t)

	out := mustRun(t, db, "list")
	assert.Contains(t, out, "No experiments yet.")

	mustRun(t, db, "create", "cash-offer", "--variants", "A,B")
	seedVisits(t, db, "cash-offer", "A", 5, 100)
	seedVisits(t, db, "cash-offer", "B", 20, 1000)

	out = mustRun(t, db, "list")
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "cash-offer")
	assert.Contains(t, out, "RUNNING")
	assert.Contains(t, out, "1,100")
}

func TestResults(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "create", "cash-offer", "--variants", "A,B")
	seedVisits(t, db, "cash-offer", "A", 5, 100)
	seedVisits(t, db, "cash-offer", "B", 20, 100)

	out := mustRun(t, db, "results", "cash-offer")
	assert.Contains(t, out, "EXPERIMENT: cash-offer")
	assert.Contains(t, out, "SUBMITTED")
	assert.Contains(t, out, "99% confident \"B\" is the winner (300.0% lift")
	assert.Contains(t, out, "SEGMENTS")
	assert.Contains(t, out, "direct:100")

	_, err := runCLI(t, db, "results", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "experiment 'missing' not found")
}

func TestResults_JSON(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "create", "cash-offer", "--variants", "A,B")
	seedVisits(t, db, "cash-offer", "A", 5, 100)
	seedVisits(t, db, "cash-offer", "B", 15, 100)

	out := mustRun(t, db, "results", "cash-offer", "--json")

	var report struct {
		Experiment string `json:"experiment"`
		Variants   []struct {
			Name   string `json:"name"`
			Funnel struct {
				TotalViews  int `json:"total_views"`
				ViewedOffer int `json:"viewed_offer"`
			} `json:"funnel"`
		} `json:"variants"`
		Verdict struct {
			Confidence    int    `json:"confidence"`
			WinnerVariant string `json:"winner_variant"`
		} `json:"verdict"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "cash-offer", report.Experiment)
	require.Len(t, report.Variants, 2)
	assert.Equal(t, 100, report.Variants[0].Funnel.TotalViews)
	assert.Equal(t, 50, report.Variants[0].Funnel.ViewedOffer)
	assert.Equal(t, 95, report.Verdict.Confidence)
	assert.Equal(t, "B", report.Verdict.WinnerVariant)
}

func TestWinner(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "create", "cash-offer", "--variants", "A,B")

	_, err := runCLI(t, db, "winner", "cash-offer", "--variant", "Z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown variant")

	out := mustRun(t, db, "winner", "cash-offer", "--variant", "B")
	assert.Contains(t, out, "Declared winner for experiment 'cash-offer'")

	exp := getExperiment(t, db, "cash-offer")
	assert.Equal(t, store.StateCompleted, exp.State)
	assert.Equal(t, "B", exp.WinnerVariant)

	_, err = runCLI(t, db, "winner", "cash-offer", "--variant", "A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already completed")
}

func TestPauseResume(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "create", "cash-offer", "--variants", "A,B")

	_, err := runCLI(t, db, "resume", "cash-offer")
	require.Error(t, err)

	mustRun(t, db, "pause", "cash-offer")
	assert.Equal(t, store.StatePaused, getExperiment(t, db, "cash-offer").State)

	_, err = runCLI(t, db, "pause", "cash-offer")
	require.Error(t, err)

	mustRun(t, db, "resume", "cash-offer")
	assert.Equal(t, store.StateRunning, getExperiment(t, db, "cash-offer").State)

	_, err = runCLI(t, db, "pause", "missing")
	require.Error(t, err)
}

func TestDelete(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "create", "cash-offer", "--variants", "A,B")
	seedVisits(t, db, "cash-offer", "A", 1, 3)

	out := mustRun(t, db, "delete", "cash-offer", "--yes")
	assert.Contains(t, out, "Deleted experiment 'cash-offer'")

	out = mustRun(t, db, "list")
	assert.Contains(t, out, "No experiments yet.")

	_, err := runCLI(t, db, "delete", "cash-offer", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestExportImport_CSVRoundTrip(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "create", "cash-offer", "--variants", "A,B")
	mustRun(t, db, "create", "copy", "--variants", "A,B")
	seedVisits(t, db, "cash-offer", "A", 2, 5)
	seedVisits(t, db, "cash-offer", "B", 1, 4)

	csvOut := mustRun(t, db, "export", "cash-offer", "--format", "csv")
	lines := strings.Split(strings.TrimSpace(csvOut), "\n")
	require.Len(t, lines, 10)
	assert.True(t, strings.HasPrefix(lines[0], "id,experiment,variant,session_id"))

	file := filepath.Join(t.TempDir(), "visits.csv")
	require.NoError(t, os.WriteFile(file, []byte(csvOut), 0o600))

	out := mustRun(t, db, "import", "copy", "--file", file)
	assert.Contains(t, out, "Imported 9 visits into 'copy' (0 skipped as duplicates)")

	out = mustRun(t, db, "import", "copy", "--file", file)
	assert.Contains(t, out, "Imported 0 visits into 'copy' (9 skipped as duplicates)")

	out = mustRun(t, db, "results", "copy", "--json")
	assert.Contains(t, out, `"total_views": 5`)
}

func TestImport_RejectsUnknownVariant(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "create", "cash-offer", "--variants", "A,B")

	file := filepath.Join(t.TempDir(), "visits.csv")
	csvData := "variant,session_id,submitted_form\nA,s1,true\nZ,s2,false\n"
	require.NoError(t, os.WriteFile(file, []byte(csvData), 0o600))

	_, err := runCLI(t, db, "import", "cash-offer", "--file", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `row 2: unknown variant "Z"`)
}

func TestExport_JSONAndYAML(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "create", "cash-offer", "--variants", "A,B")
	seedVisits(t, db, "cash-offer", "B", 1, 2)

	var doc visitExport
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, db, "export", "cash-offer", "--format", "json")), &doc))
	assert.Equal(t, "cash-offer", doc.Experiment)
	assert.Equal(t, []string{"A", "B"}, doc.Variants)
	require.Len(t, doc.Visits, 2)
	assert.True(t, doc.Visits[0].SubmittedForm)

	var ydoc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(mustRun(t, db, "export", "cash-offer", "--format", "yaml")), &ydoc))
	assert.Equal(t, "cash-offer", ydoc["experiment"])
	assert.Len(t, ydoc["visits"], 2)

	_, err := runCLI(t, db, "export", "cash-offer", "--format", "xml")
	require.Error(t, err)
}

func TestToken(t *testing.T) {
	db := testDB(t)

	_, err := runCLI(t, db, "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no server running")

	tokenFile := filepath.Join(filepath.Dir(db), ".offer-goat-token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("abc123"), 0o600))

	out := mustRun(t, db, "token", "--port", "9090")
	assert.Contains(t, out, "Dashboard: http://localhost:9090/dashboard?token=abc123")
}

func TestSnippet(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "create", "cash-offer", "--variants", "A,B", "--property", "prop-42")

	out := mustRun(t, db, "snippet", "cash-offer", "--framework", "html", "--server-url", "https://og.example.com")
	assert.Contains(t, out, "landing.html")
	assert.Contains(t, out, `<script src="https://og.example.com/og.js" defer></script>`)
	assert.Contains(t, out, `data-og-property="prop-42"`)

	mustRun(t, db, "winner", "cash-offer", "--variant", "A")
	out = mustRun(t, db, "snippet", "cash-offer", "--framework", "html")
	assert.Contains(t, out, "static-winner.html")
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "12,345", formatNumber(12345))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
}
