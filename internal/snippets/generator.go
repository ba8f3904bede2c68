// Package snippets renders copy-paste integration code that wires a
// landing page to the offer-goat tracking endpoints.
package snippets

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
)

type Framework string

const (
	FrameworkHTML  Framework = "html"
	FrameworkReact Framework = "react"
)

// Frameworks lists the supported frameworks in prompt order.
var Frameworks = []Framework{FrameworkHTML, FrameworkReact}

// Steps are the funnel sections a landing page marks with data-og-step.
var Steps = []string{"hero", "offer", "benefits", "process", "form"}

type Config struct {
	Experiment    string
	Variants      []string
	PropertyID    string
	ServerURL     string
	WinnerVariant string // empty until a winner is declared
}

type SnippetFile struct {
	Filename string
	Content  string
}

type templateData struct {
	Experiment       string
	ExperimentPascal string
	Variants         []string
	PropertyID       string
	ServerURL        string
	Steps            []string
	Winner           string
}

// Generate renders the integration files for a framework. Once a winner is
// declared the snippet drops all tracking and serves the winner statically.
func Generate(framework Framework, cfg Config) ([]SnippetFile, error) {
	if len(cfg.Variants) == 0 {
		return nil, eris.New("snippets: experiment has no variants")
	}

	data := templateData{
		Experiment:       cfg.Experiment,
		ExperimentPascal: toPascalCase(cfg.Experiment),
		Variants:         cfg.Variants,
		PropertyID:       cfg.PropertyID,
		ServerURL:        strings.TrimRight(cfg.ServerURL, "/"),
		Steps:            Steps,
		Winner:           cfg.WinnerVariant,
	}

	if data.Winner != "" {
		return render(data, SnippetFile{Filename: "static-winner.html", Content: staticWinnerTemplate})
	}

	switch framework {
	case FrameworkReact:
		return render(data,
			SnippetFile{Filename: "useOfferExperiment.ts", Content: reactHookTemplate},
			SnippetFile{Filename: data.ExperimentPascal + "Page.tsx", Content: reactPageTemplate},
		)
	case FrameworkHTML, "":
		return render(data, SnippetFile{Filename: "landing.html", Content: htmlTemplate})
	default:
		return nil, eris.Errorf("snippets: unknown framework %q", framework)
	}
}

func render(data templateData, files ...SnippetFile) ([]SnippetFile, error) {
	out := make([]SnippetFile, len(files))
	for i, f := range files {
		tmpl, err := template.New(f.Filename).Parse(f.Content)
		if err != nil {
			return nil, eris.Wrapf(err, "snippets: parse %s", f.Filename)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, eris.Wrapf(err, "snippets: render %s", f.Filename)
		}
		out[i] = SnippetFile{Filename: f.Filename, Content: buf.String()}
	}
	return out, nil
}

// toPascalCase turns "cash-offer_v2" into "CashOfferV2".
func toPascalCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return b.String()
}

const staticWinnerTemplate = `<!-- offer-goat: "{{.Experiment}}" is complete, winner "{{.Winner}}" -->
<!-- Keep only the markup of variant "{{.Winner}}" and remove og.js. -->
<main>
  <!-- {{.Winner}} -->
</main>
`

const htmlTemplate = `<!-- offer-goat experiment: {{.Experiment}} -->
<script src="{{.ServerURL}}/og.js" defer></script>

<main data-og-experiment="{{.Experiment}}"{{if .PropertyID}} data-og-property="{{.PropertyID}}"{{end}}>
{{- range $i, $v := .Variants}}
  <div data-og-variant="{{$v}}" hidden>
    <!-- markup for variant {{$v}} -->
{{- range $.Steps}}
{{- if eq . "form"}}
    <section data-og-step="form">
      <form data-og-submit>
        <!-- lead form fields -->
        <button type="submit">Get my cash offer</button>
      </form>
    </section>
{{- else}}
    <section data-og-step="{{.}}"></section>
{{- end}}
{{- end}}
  </div>
{{- end}}
</main>

<!-- Interaction events: window.og.track('offer_revealed', {offer: 250000}) -->
`

const reactHookTemplate = `import { useCallback, useEffect, useRef, useState } from 'react';

const SERVER_URL = '{{.ServerURL}}';

type Step = {{range $i, $s := .Steps}}{{if $i}} | {{end}}'{{$s}}'{{end}};

function sessionId(): string {
  let id = sessionStorage.getItem('og_sid');
  if (!id) {
    id = crypto.randomUUID();
    sessionStorage.setItem('og_sid', id);
  }
  return id;
}

function visitorId(): string {
  let id = localStorage.getItem('og_vid');
  if (!id) {
    id = crypto.randomUUID();
    localStorage.setItem('og_vid', id);
  }
  return id;
}

function post(path: string, body: unknown) {
  const data = JSON.stringify(body);
  if (navigator.sendBeacon && navigator.sendBeacon(SERVER_URL + path, data)) return;
  fetch(SERVER_URL + path, { method: 'POST', body: data, keepalive: true });
}

export function useOfferExperiment(experiment: string, propertyId = '{{.PropertyID}}') {
  const [variant, setVariant] = useState<string | null>(null);
  const flags = useRef<Record<string, boolean>>({ viewed_hero: true });
  const start = useRef(Date.now());
  const sid = useRef('');

  const visit = useCallback((extra?: Record<string, unknown>) => {
    if (!variant) return;
    post('/v/visit', {
      experiment,
      variant,
      session_id: sid.current,
      property_id: propertyId,
      source: new URLSearchParams(location.search).get('utm_source') || '',
      ...flags.current,
      ...extra,
    });
  }, [experiment, propertyId, variant]);

  useEffect(() => {
    sid.current = sessionId();
    fetch(SERVER_URL + '/v/assign?e=' + encodeURIComponent(experiment) + '&vid=' + encodeURIComponent(visitorId()))
      .then((r) => (r.ok ? r.json() : null))
      .then((d) => d && setVariant(d.variant));
  }, [experiment]);

  useEffect(() => {
    if (!variant) return;
    visit();
    const leave = () => visit({ time_on_page: Math.round((Date.now() - start.current) / 1000) });
    window.addEventListener('pagehide', leave);
    return () => window.removeEventListener('pagehide', leave);
  }, [variant, visit]);

  const trackStep = useCallback((step: Step) => {
    const key = 'viewed_' + step;
    if (flags.current[key]) return;
    flags.current[key] = true;
    visit();
  }, [visit]);

  const trackSubmit = useCallback(() => {
    flags.current.submitted_form = true;
    visit();
  }, [visit]);

  const trackEvent = useCallback((type: string, metadata?: Record<string, unknown>) => {
    if (!variant) return;
    post('/v/event', { experiment, variant, session_id: sid.current, type, metadata });
  }, [experiment, variant]);

  return { variant, trackStep, trackSubmit, trackEvent };
}
`

const reactPageTemplate = `import { useOfferExperiment } from './useOfferExperiment';

export function {{.ExperimentPascal}}Page() {
  const { variant, trackStep, trackSubmit } = useOfferExperiment('{{.Experiment}}');
  if (!variant) return null;

  switch (variant) {
{{- range .Variants}}
    case '{{.}}':
      return (
        <main>
          {/* markup for variant {{.}}; call trackStep('offer') etc. as sections scroll into view */}
          <form onSubmit={trackSubmit}>{/* lead form */}</form>
        </main>
      );
{{- end}}
    default:
      return null;
  }
}
`
