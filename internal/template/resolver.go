package template

import (
	"context"
	"regexp"

	"github.com/ignite/bulkmail/internal/pkg/logger"
)

// mergeFieldPattern matches ${...} placeholder tokens. They are stripped,
// not rendered: the send carries the same literal content for everyone in
// a batch.
var mergeFieldPattern = regexp.MustCompile(`\$\{[^}]+\}`)

// Loader is the slice of Store the resolver needs.
type Loader interface {
	Load(ctx context.Context, id string) (*Template, error)
}

// Resolver resolves a template ID plus optional subject override into final
// content. Template load failures degrade to fallback content instead of
// failing: the campaign still goes out even when the template store is
// down.
type Resolver struct {
	store           Loader
	fallbackSubject string
	fallbackBody    string
}

// NewResolver creates a resolver with the given fallbacks.
func NewResolver(store Loader, fallbackSubject, fallbackBody string) *Resolver {
	if fallbackSubject == "" {
		fallbackSubject = "Bulk Email"
	}
	if fallbackBody == "" {
		fallbackBody = "Default email body"
	}
	return &Resolver{store: store, fallbackSubject: fallbackSubject, fallbackBody: fallbackBody}
}

// Resolve loads the template and applies the subject override. The override
// wins regardless of whether the load succeeded; merge-field tokens are
// stripped from both subject and body.
func (r *Resolver) Resolve(ctx context.Context, templateID, subjectOverride string) (string, string) {
	subject := r.fallbackSubject
	body := r.fallbackBody

	tmpl, err := r.store.Load(ctx, templateID)
	if err != nil {
		logger.Error("template load failed, using fallback content",
			"template_id", templateID, "error", err)
	} else {
		if tmpl.Subject != "" {
			subject = tmpl.Subject
		}
		body = tmpl.Body
	}

	if subjectOverride != "" {
		subject = subjectOverride
	}

	return StripMergeFields(subject), StripMergeFields(body)
}

// StripMergeFields removes ${...} placeholder tokens without substitution.
func StripMergeFields(s string) string {
	return mergeFieldPattern.ReplaceAllString(s, "")
}
