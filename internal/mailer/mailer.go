// Package mailer renders notification messages and delivers them by mail.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
)

// ErrRender marks a message that cannot be produced from its inputs.
// Retrying does not help.
var ErrRender = errors.New("render mail")

// Sender is the mail delivery collaborator.
type Sender interface {
	Send(ctx context.Context, toAddress, toName, subject, templateName string, data map[string]string) error
}

// DeliveryFault is a transient failure to hand a message to the mail server.
type DeliveryFault struct {
	Err error
}

func (f *DeliveryFault) Error() string {
	return "mail delivery: " + f.Err.Error()
}

func (f *DeliveryFault) Unwrap() error {
	return f.Err
}

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// RenderTemplate executes the named mail template with data.
func RenderTemplate(name string, data map[string]string) (string, error) {
	if templates.Lookup(name+".html") == nil {
		return "", fmt.Errorf("%w: unknown template %q", ErrRender, name)
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".html", data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRender, err)
	}
	return buf.String(), nil
}
