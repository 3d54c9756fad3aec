// ABOUTME: Operator status page rendering gateway state as HTML
// ABOUTME: Builds a markdown report and converts it with goldmark

package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/yuin/goldmark"

	"github.com/2389/context-gateway/internal/registry"
)

var pageTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
<title>context-gateway</title>
<style>
body { font-family: sans-serif; max-width: 50rem; margin: 2rem auto; padding: 0 1rem; }
code { background: #f0f0f0; padding: 0.1rem 0.3rem; border-radius: 3px; }
</style>
</head>
<body>
{{.Content}}
</body>
</html>
`))

// Dashboard serves a human-readable status page for operators.
type Dashboard struct {
	registry  *registry.Registry
	logger    *slog.Logger
	version   string
	startedAt time.Time
}

// New creates a Dashboard reporting on the given registry.
func New(reg *registry.Registry, logger *slog.Logger, version string) *Dashboard {
	return &Dashboard{
		registry:  reg,
		logger:    logger.With("component", "dashboard"),
		version:   version,
		startedAt: time.Now(),
	}
}

// RegisterRoutes registers the dashboard endpoint on the given ServeMux.
func (d *Dashboard) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /dashboard", d.handleDashboard)
}

func (d *Dashboard) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	md := d.statusMarkdown()

	var htmlBuf bytes.Buffer
	if err := goldmark.Convert(md, &htmlBuf); err != nil {
		d.logger.Error("failed to render status markdown", "error", err)
		http.Error(w, "failed to render status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ Content template.HTML }{Content: template.HTML(htmlBuf.String())}
	if err := pageTemplate.Execute(w, data); err != nil {
		d.logger.Error("failed to render dashboard page", "error", err)
	}
}

// statusMarkdown assembles the status report.
func (d *Dashboard) statusMarkdown() []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# context-gateway\n\n")
	fmt.Fprintf(&buf, "**Version:** %s\n\n", d.version)
	fmt.Fprintf(&buf, "**Uptime:** %s\n\n", time.Since(d.startedAt).Round(time.Second))

	fmt.Fprintf(&buf, "## Supported services\n\n")
	for _, serviceType := range d.registry.ServiceTypes() {
		fmt.Fprintf(&buf, "- `%s`\n", serviceType)
	}

	return buf.Bytes()
}
