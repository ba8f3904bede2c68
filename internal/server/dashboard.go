package server

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/offer-goat/offer-goat/internal/dashboard"
	"github.com/offer-goat/offer-goat/internal/stats"
	"github.com/offer-goat/offer-goat/internal/store"
)

// Dashboard template data structures
type layoutData struct {
	Title   string
	CSS     template.CSS
	Content template.HTML
}

type listData struct {
	Experiments []listItem
}

type listItem struct {
	Name           string
	State          string
	VariantCount   int
	TotalViews     int
	ConversionRate string
	Leader         string
	Significant    bool
	Confidence     int
	CreatedAt      string
}

type detailData struct {
	Name           string
	State          string
	Goal           string
	DeclaredWinner string
	Verdict        *verdictView
	StepLabels     []string
	Variants       []variantView
}

type verdictView struct {
	Control       string
	Challenger    string
	WinnerVariant string
	Lift          string
	Confidence    int
	Significant   bool
}

type variantView struct {
	Name    string
	Rank    int
	Steps   []stepView
	AvgTime int
	CI      string
	Tier    string
	Mobile  int
	Desktop int
	Sources []sourceView
}

type stepView struct {
	Count   int
	Percent string
	DropOff string // empty for the first step
}

type sourceView struct {
	Label string
	Count int
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	// Handle logout
	if r.URL.Query().Get("logout") == "1" {
		http.SetCookie(w, &http.Cookie{
			Name:   tokenCookieName,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	reports, err := s.analytics.Reports(r.Context())
	if err != nil {
		zap.L().Error("dashboard: build reports", zap.Error(err))
		http.Error(w, "Failed to load experiments", http.StatusInternalServerError)
		return
	}

	items := make([]listItem, len(reports))
	for i, rep := range reports {
		items[i] = newListItem(rep)
	}

	s.renderDashboard(w, "Experiments", "list.html", listData{Experiments: items})
}

func (s *Server) handleDashboardExperiment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	report, err := s.analytics.Report(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		zap.L().Error("dashboard: build report", zap.String("experiment", name), zap.Error(err))
		http.Error(w, "Failed to load experiment", http.StatusInternalServerError)
		return
	}

	s.renderDashboard(w, report.Experiment, "detail.html", newDetailData(report))
}

func (s *Server) handleDashboardAPI(w http.ResponseWriter, r *http.Request) {
	reports, err := s.analytics.Reports(r.Context())
	if err != nil {
		zap.L().Error("dashboard api: build reports", zap.Error(err))
		http.Error(w, "Failed to load experiments", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"experiments": reports,
	})
}

func (s *Server) handleDashboardAPIExperiment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	report, err := s.analytics.Report(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Experiment not found", http.StatusNotFound)
			return
		}
		zap.L().Error("dashboard api: build report", zap.String("experiment", name), zap.Error(err))
		http.Error(w, "Failed to load experiment", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func newListItem(rep *stats.Report) listItem {
	var views, conversions int
	for _, v := range rep.Variants {
		views += v.Funnel.TotalViews
		conversions += v.Funnel.SubmittedForm
	}

	item := listItem{
		Name:           rep.Experiment,
		State:          rep.State,
		VariantCount:   len(rep.Variants),
		TotalViews:     views,
		ConversionRate: "0%",
		Leader:         rep.Leader(),
		CreatedAt:      rep.CreatedAt.Format("Jan 2, 2006"),
	}
	if views > 0 {
		item.ConversionRate = formatPercentage(float64(conversions) / float64(views) * 100)
	}
	if rep.Verdict != nil {
		item.Significant = rep.Verdict.Significant
		item.Confidence = rep.Verdict.Confidence
	}
	return item
}

func newDetailData(rep *stats.Report) detailData {
	data := detailData{
		Name:           rep.Experiment,
		State:          rep.State,
		Goal:           rep.ConversionGoal,
		DeclaredWinner: rep.DeclaredWinner,
		Variants:       make([]variantView, len(rep.Variants)),
	}

	for _, step := range (stats.FunnelStats{}).Steps() {
		data.StepLabels = append(data.StepLabels, step.Label)
	}

	if v := rep.Verdict; v != nil {
		data.Verdict = &verdictView{
			Control:       v.Control,
			Challenger:    v.Challenger,
			WinnerVariant: v.WinnerVariant,
			Lift:          fmt.Sprintf("%.1f%%", v.Lift),
			Confidence:    v.Confidence,
			Significant:   v.Significant,
		}
	}

	for i, v := range rep.Variants {
		view := variantView{
			Name:    v.Name,
			AvgTime: v.Funnel.AvgTimeOnPage,
			CI:      fmt.Sprintf("%.1f%% - %.1f%%", v.CILower*100, v.CIUpper*100),
			Mobile:  v.Segments.Device.Mobile,
			Desktop: v.Segments.Device.Desktop,
		}
		if rk, ok := rep.RankingOf(v.Name); ok {
			view.Rank = rk.Rank
			view.Tier = string(rk.Tier)
		}
		for j, step := range v.Funnel.Steps() {
			sv := stepView{Count: step.Count, Percent: formatPercentage(step.Percent)}
			if j > 0 {
				sv.DropOff = fmt.Sprintf("-%.1f%%", step.DropOff)
			}
			view.Steps = append(view.Steps, sv)
		}
		view.Sources = sortedSources(v.Segments.Source)
		data.Variants[i] = view
	}

	return data
}

// sortedSources orders traffic sources by visit count, then by name.
func sortedSources(counts map[string]int) []sourceView {
	sources := make([]sourceView, 0, len(counts))
	for label, n := range counts {
		sources = append(sources, sourceView{Label: label, Count: n})
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Count != sources[j].Count {
			return sources[i].Count > sources[j].Count
		}
		return sources[i].Label < sources[j].Label
	})
	return sources
}

func (s *Server) renderDashboard(w http.ResponseWriter, title, contentTemplate string, data any) {
	cssBytes, err := dashboard.Assets.ReadFile("assets/style.css")
	if err != nil {
		http.Error(w, "Failed to load styles", http.StatusInternalServerError)
		return
	}

	var content bytes.Buffer
	if err := s.templates.ExecuteTemplate(&content, contentTemplate, data); err != nil {
		zap.L().Error("dashboard: render content", zap.String("template", contentTemplate), zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	var page bytes.Buffer
	err = s.templates.ExecuteTemplate(&page, "layout.html", layoutData{
		Title:   title,
		CSS:     template.CSS(cssBytes),
		Content: template.HTML(content.String()),
	})
	if err != nil {
		zap.L().Error("dashboard: render layout", zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page.WriteTo(w)
}

func formatPercentage(p float64) string {
	if p < 0.01 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", p)
}
