package web

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/acuhlmann/hackersbot/internal/refresh"
	"github.com/acuhlmann/hackersbot/internal/store"
)

func buildIndexHTML(metas []store.RunMeta, state refresh.State) string {
	var sb strings.Builder

	sb.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>HackerNews Summary</title><style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 700px; margin: 0 auto; padding: 20px; color: #333; }
h1 { color: #1a1a2e; border-bottom: 2px solid #ff6600; padding-bottom: 10px; }
.status { background: #f0f0f0; padding: 15px; border-radius: 8px; margin-bottom: 20px; }
.status.error { background: #fdecea; }
.run { border: 1px solid #ddd; border-radius: 8px; padding: 15px; margin-bottom: 15px; }
.run h3 { margin-top: 0; color: #0f3460; }
.meta { color: #666; font-size: 0.9em; }
button { background: #ff6600; color: white; border: none; border-radius: 6px; padding: 10px 18px; cursor: pointer; }
button:disabled { background: #ccc; cursor: default; }
</style></head><body>`)

	sb.WriteString("<h1>HackerNews Summary</h1>")

	sb.WriteString(statusHTML(state))

	sb.WriteString(`<form method="POST" action="/api/refresh"><button type="submit"`)
	if state.Running || state.RetryAfter > 0 {
		sb.WriteString(" disabled")
	}
	sb.WriteString(`>Refresh now</button></form>`)

	if len(metas) == 0 {
		sb.WriteString("<p>No summaries yet. Trigger a refresh to generate the first one.</p>")
	}
	for _, m := range metas {
		sb.WriteString(`<div class="run">`)
		sb.WriteString(fmt.Sprintf(`<h3><a href="/api/runs/%s">%s</a></h3>`, m.ID, html.EscapeString(m.ID)))
		sb.WriteString(fmt.Sprintf(`<div class="meta">%d articles`, m.ArticleCount))
		if m.AICount > 0 {
			sb.WriteString(fmt.Sprintf(" (%d AI-related)", m.AICount))
		}
		sb.WriteString(fmt.Sprintf(` | <a href="/summaries/%s">markdown</a> | <a href="/summaries/%s">json</a></div>`,
			store.MarkdownFileName(m.ID), store.JSONFileName(m.ID)))
		sb.WriteString("</div>")
	}

	sb.WriteString("</body></html>")
	return sb.String()
}

func statusHTML(state refresh.State) string {
	switch {
	case state.Running:
		return fmt.Sprintf(`<div class="status">Refresh in progress (%s)&hellip;</div>`, state.Phase)
	case state.LastError != "":
		return fmt.Sprintf(`<div class="status error">Last refresh failed: %s</div>`, html.EscapeString(state.LastError))
	case state.RetryAfter > 0:
		return fmt.Sprintf(`<div class="status">Next refresh available in %s.</div>`, formatWait(state.RetryAfter))
	case !state.LastRunAt.IsZero():
		return fmt.Sprintf(`<div class="status">Last refresh: %s.</div>`, state.LastRunAt.Format(time.RFC1123))
	default:
		return `<div class="status">No refresh has run yet.</div>`
	}
}
