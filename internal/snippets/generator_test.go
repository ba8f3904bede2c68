package snippets_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offer-goat/offer-goat/internal/snippets"
)

func TestGenerate_HTML(t *testing.T) {
	files, err := snippets.Generate(snippets.FrameworkHTML, snippets.Config{
		Experiment: "cash-offer",
		Variants:   []string{"ultra-simple", "email-first"},
		PropertyID: "prop-42",
		ServerURL:  "https://og.example.com/",
	})
	require.NoError(t, err)
	require.Len(t, files, 1)

	html := files[0].Content
	assert.Equal(t, "landing.html", files[0].Filename)
	assert.Contains(t, html, `<script src="https://og.example.com/og.js" defer></script>`)
	assert.Contains(t, html, `data-og-experiment="cash-offer" data-og-property="prop-42"`)
	assert.Contains(t, html, `data-og-variant="ultra-simple"`)
	assert.Contains(t, html, `data-og-variant="email-first"`)
	assert.Contains(t, html, `data-og-step="benefits"`)
	assert.Equal(t, 2, strings.Count(html, "data-og-submit"))
}

func TestGenerate_React(t *testing.T) {
	files, err := snippets.Generate(snippets.FrameworkReact, snippets.Config{
		Experiment: "cash-offer",
		Variants:   []string{"A", "B"},
		ServerURL:  "http://localhost:8080",
	})
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "useOfferExperiment.ts", files[0].Filename)
	assert.Contains(t, files[0].Content, "const SERVER_URL = 'http://localhost:8080';")
	assert.Contains(t, files[0].Content, "type Step = 'hero' | 'offer' | 'benefits' | 'process' | 'form';")

	assert.Equal(t, "CashOfferPage.tsx", files[1].Filename)
	assert.Contains(t, files[1].Content, "export function CashOfferPage()")
	assert.Contains(t, files[1].Content, "case 'B':")
}

func TestGenerate_StaticWinner(t *testing.T) {
	files, err := snippets.Generate(snippets.FrameworkReact, snippets.Config{
		Experiment:    "cash-offer",
		Variants:      []string{"A", "B"},
		WinnerVariant: "B",
	})
	require.NoError(t, err)
	require.Len(t, files, 1)

	assert.Equal(t, "static-winner.html", files[0].Filename)
	assert.Contains(t, files[0].Content, `winner "B"`)
	assert.NotContains(t, files[0].Content, "og.js\"")
}

func TestGenerate_Errors(t *testing.T) {
	_, err := snippets.Generate(snippets.FrameworkHTML, snippets.Config{Experiment: "x"})
	assert.Error(t, err)

	_, err = snippets.Generate("svelte", snippets.Config{Experiment: "x", Variants: []string{"A"}})
	assert.Error(t, err)
}
