package view

import (
	"bytes"
	"html/template"
	"strconv"
	"time"
)

// SharePageData provides the dynamic fields required by the share template.
type SharePageData struct {
	SiteName      string
	FooterText    string
	ID            string
	Type          string
	Filename      string
	ContentType   string
	Size          int64
	CreatedAt     time.Time
	ExpiresAt     *time.Time
	MaxDownloads  *int
	DownloadCount int
	BurnAfterRead bool
	// AccessURL is the /raw or /sub path that actually serves the content.
	AccessURL string
}

var sharePageTmpl = template.Must(template.New("share_page").Funcs(template.FuncMap{
	"size": FormatSize,
	"when": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 UTC") },
}).Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<meta name="robots" content="noindex" />
	<title>{{.Filename}} · {{.SiteName}}</title>
	<style>
		:root {
			--bg: #090a0f;
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			--accent: #7dd3fc;
			--accent-strong: #38bdf8;
			--warn: #fbbf24;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			flex-direction: column;
			align-items: center;
			justify-content: center;
			background: radial-gradient(circle at 20% 20%, #111827, #030712 60%);
			color: var(--text);
		}
		.card {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 18px;
			padding: 32px;
			width: min(520px, 92vw);
			box-shadow: 0 45px 100px rgba(0,0,0,0.35);
		}
		h1 { font-size: 1.4rem; margin: 0 0 6px; word-break: break-all; }
		.muted { color: var(--muted); }
		dl {
			display: grid;
			grid-template-columns: max-content 1fr;
			gap: 8px 16px;
			margin: 24px 0;
		}
		dt { color: var(--muted); font-size: 0.85rem; }
		dd { margin: 0; }
		.warn {
			padding: 12px 16px;
			border-radius: 12px;
			border: 1px solid rgba(251, 191, 36, 0.35);
			color: var(--warn);
			font-size: 0.9rem;
		}
		a.button {
			display: inline-flex;
			align-items: center;
			justify-content: center;
			margin-top: 24px;
			padding: 0 28px;
			height: 48px;
			border-radius: 999px;
			background: linear-gradient(120deg, var(--accent), var(--accent-strong));
			color: #050708;
			font-weight: 600;
			text-decoration: none;
		}
		footer { margin-top: 24px; font-size: 0.8rem; color: var(--muted); }
	</style>
</head>
<body>
	<div class="card">
		<h1>{{.Filename}}</h1>
		<div class="muted">{{.ContentType}}</div>

		<dl>
			<dt>Type</dt><dd>{{.Type}}</dd>
			<dt>Size</dt><dd>{{size .Size}}</dd>
			<dt>Shared</dt><dd>{{when .CreatedAt}}</dd>
			{{if .ExpiresAt}}<dt>Expires</dt><dd>{{when .ExpiresAt}}</dd>{{end}}
			{{if .MaxDownloads}}<dt>Downloads</dt><dd>{{.DownloadCount}} / {{.MaxDownloads}}</dd>
			{{else}}<dt>Downloads</dt><dd>{{.DownloadCount}}</dd>{{end}}
		</dl>

		{{if .BurnAfterRead}}
		<div class="warn">This item is deleted after it is opened once.</div>
		{{end}}

		<a class="button" href="{{.AccessURL}}" rel="nofollow">
			{{if eq .Type "subscription"}}Open subscription{{else if eq .Type "text"}}View text{{else}}Download{{end}}
		</a>
	</div>
	<footer>{{.SiteName}}{{if .FooterText}} · {{.FooterText}}{{end}}</footer>
</body>
</html>
`))

// RenderSharePage expands the share page template with the provided data.
func RenderSharePage(data SharePageData) (string, error) {
	if data.SiteName == "" {
		data.SiteName = "CloudShare"
	}
	var buf bytes.Buffer
	if err := sharePageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatSize renders a byte count with binary units, e.g. "1.5 MB".
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return strconv.FormatFloat(roundTo(v, 2), 'f', -1, 64) + " " + units[i]
}

func roundTo(v float64, places int) float64 {
	p := 1.0
	for range places {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}
