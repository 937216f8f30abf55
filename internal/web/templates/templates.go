// Package templates renders the HTML fragments returned to HTMX requests.
package templates

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"
)

// ErrorAlert renders a dismissible error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert" data-code="%s"><p class="alert-message">%s</p>`,
			templ.EscapeString(code), templ.EscapeString(message))
		if err != nil {
			return err
		}
		if action != "" {
			if _, err := fmt.Fprintf(w, `<p class="alert-action">%s</p>`, templ.EscapeString(action)); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(w, `<p class="alert-code">Error code: %s</p></div>`, templ.EscapeString(code))
		return err
	})
}

// ImportSummary renders the result of a finished import.
func ImportSummary(imported int, took time.Duration) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		noun := "sessions"
		if imported == 1 {
			noun = "session"
		}
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-success" role="status" data-imported="%d"><p class="alert-message">Imported %d %s in %s.</p></div>`,
			imported, imported, noun, templ.EscapeString(took.Round(time.Millisecond).String()))
		return err
	})
}
