package membership

import (
	"bytes"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
)

const (
	// EmailTemplateAccountVerification is the verification email template
	EmailTemplateAccountVerification = "account_verification"
	emailTemplateExtension           = ".html"
)

// EmailRenderer renders email bodies from django templates
type EmailRenderer struct {
	engine *django.Engine
}

// NewEmailRenderer loads every .html template in fsys. A nil fsys uses the
// embedded templates.
func NewEmailRenderer(fsys fs.FS) (*EmailRenderer, error) {
	if fsys == nil {
		fsys = GetEmailTemplatesFS()
	}

	engine := django.NewFileSystem(http.FS(fsys), emailTemplateExtension)
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load email templates")
	}

	return &EmailRenderer{engine: engine}, nil
}

// Render executes the named template with data
func (r *EmailRenderer) Render(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := r.engine.Render(&buf, name, data); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email").
			WithMetadata(map[string]any{
				"template": name,
			})
	}
	return buf.String(), nil
}
