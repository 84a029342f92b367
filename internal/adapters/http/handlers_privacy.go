package web

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"os"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// privacyPolicyPath is the markdown source of the privacy policy page.
const privacyPolicyPath = "content/datenschutz.md"

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set), preventing XSS.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// handlePrivacy renders the privacy policy from markdown (GET /datenschutz).
func handlePrivacy(w http.ResponseWriter, r *http.Request) {
	source, err := os.ReadFile(privacyPolicyPath)
	if err != nil {
		slog.Error("privacy_policy_unreadable", "path", privacyPolicyPath, "error", err)
		renderErrorPage(w, r, 500, "Interner Serverfehler")
		return
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert(source, &buf); err != nil {
		slog.Error("privacy_policy_render_failed", "error", err)
		renderErrorPage(w, r, 500, "Interner Serverfehler")
		return
	}

	renderTemplate(w, r, "privacy.html", map[string]any{
		"Content": template.HTML(buf.String()),
	})
}
