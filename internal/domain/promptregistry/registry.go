// Package promptregistry stores versioned prompt templates bound to pinned content hashes.
package promptregistry

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"text/template"

	"caremesh/services/agent-guard/internal/domain/guarderrors"
)

// Template is a prompt template whose body is pinned to a SHA-256 hash. A body
// that does not hash to PinnedHash is never served.
type Template struct {
	ID         string
	Category   string
	Body       string
	PinnedHash string // hex-encoded SHA-256 of Body
}

// HashBody returns the hex-encoded SHA-256 of a template body.
func HashBody(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// Registry holds verified templates. Load verifies the hash binding once;
// lookups after that are read-only.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*verified
}

type verified struct {
	tpl    Template
	parsed *template.Template
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*verified)}
}

// Load verifies the template's hash binding and registers it. A hash mismatch
// is a hard failure, never auto-corrected.
func (r *Registry) Load(ctx context.Context, tpl Template) error {
	if tpl.ID == "" {
		return guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeValidation,
			"prompt template id is empty", nil, "prompt-load-id-001")
	}

	actual := HashBody(tpl.Body)
	if actual != tpl.PinnedHash {
		return guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeHashMismatch,
			fmt.Sprintf("prompt template %q content hash does not match pinned hash", tpl.ID),
			nil, "prompt-load-hash-001").
			WithContext(map[string]any{"template_id": tpl.ID, "pinned": tpl.PinnedHash, "actual": actual})
	}

	parsed, err := template.New(tpl.ID).Parse(tpl.Body)
	if err != nil {
		return guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeValidation,
			fmt.Sprintf("prompt template %q does not parse", tpl.ID), err, "prompt-load-parse-001")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[tpl.ID] = &verified{tpl: tpl, parsed: parsed}
	return nil
}

// Get returns a verified template by id.
func (r *Registry) Get(ctx context.Context, id string) (Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.templates[id]
	if !ok {
		return Template{}, guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeTemplateNotFound,
			fmt.Sprintf("prompt template %q is not registered", id), nil, "prompt-get-001")
	}
	return v.tpl, nil
}

// Render executes a verified template with the given data.
func (r *Registry) Render(ctx context.Context, id string, data any) (string, error) {
	r.mu.RLock()
	v, ok := r.templates[id]
	r.mu.RUnlock()

	if !ok {
		return "", guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeTemplateNotFound,
			fmt.Sprintf("prompt template %q is not registered", id), nil, "prompt-render-001")
	}

	var buf bytes.Buffer
	if err := v.parsed.Execute(&buf, data); err != nil {
		return "", guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeValidation,
			fmt.Sprintf("render prompt template %q", id), err, "prompt-render-002")
	}
	return buf.String(), nil
}

// IDs returns the ids of all verified templates.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.templates))
	for id := range r.templates {
		out = append(out, id)
	}
	return out
}
