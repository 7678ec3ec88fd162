// Package pages holds the server-rendered pages. Browser requests that fail
// outside the JSON API get ErrorPage.
package pages

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/briefly/internal/templates/layouts"
)

const errorStyle = `body{font-family:system-ui,sans-serif;max-width:36rem;margin:4rem auto;padding:0 1rem;color:#1f2937}` +
	`h1{font-size:3rem;margin:0}p.meta{color:#6b7280;font-size:.875rem}`

// ErrorPage renders a minimal HTML error page for the given status code.
func ErrorPage(code int, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := http.StatusText(code)
		if title == "" {
			title = "Error"
		}

		_, err := fmt.Fprintf(w,
			`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>%d %s · Briefly</title><style>%s</style></head><body>`+
				`<h1>%d</h1><h2>%s</h2><p>%s</p>`,
			code, templ.EscapeString(title), errorStyle,
			code, templ.EscapeString(title), templ.EscapeString(message),
		)
		if err != nil {
			return err
		}

		if name := layouts.GetUserName(ctx); name != "" {
			if _, err := fmt.Fprintf(w, `<p class="meta">Signed in as %s</p>`, templ.EscapeString(name)); err != nil {
				return err
			}
		}
		if id := layouts.GetRequestID(ctx); id != "" {
			if _, err := fmt.Fprintf(w, `<p class="meta">Request ID: %s</p>`, templ.EscapeString(id)); err != nil {
				return err
			}
		}

		_, err = io.WriteString(w, `</body></html>`)
		return err
	})
}
