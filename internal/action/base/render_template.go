package base

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"text/template"

	"github.com/nixinstall/nix-installer/internal/action"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const KindRenderTemplate action.Kind = "render_template"

func init() {
	action.Register(KindRenderTemplate, func() action.Unmarshaler { return &RenderTemplate{} })
}

// RenderTemplate renders one of the embedded configuration templates
// (nix.conf, the systemd unit, ...) with Data and writes the result to
// Path, following the create-file back-up discipline via a delegated
// CreateFile so unit files and nix.conf get the same fingerprinted
// backup behavior as any other config write.
type RenderTemplate struct {
	action.Base
	TemplateName string
	Path         string
	Data         map[string]any
	Mode         os.FileMode
	delegate     *CreateFile
}

func NewRenderTemplate(templateName, path string, data map[string]any, mode os.FileMode) *RenderTemplate {
	r := &RenderTemplate{TemplateName: templateName, Path: path, Data: data, Mode: mode}
	r.Base = action.NewBase(KindRenderTemplate)
	return r
}

func (r *RenderTemplate) TracingSynopsis() string {
	return fmt.Sprintf("render %s to %s", r.TemplateName, r.Path)
}
func (r *RenderTemplate) Reversibility() action.Reversibility { return action.ReversibilityLossless }
func (r *RenderTemplate) ParallelSafe() bool                  { return false }
func (r *RenderTemplate) Children() []action.Action           { return nil }

func (r *RenderTemplate) render() (string, error) {
	content, err := templateFS.ReadFile("templates/" + r.TemplateName)
	if err != nil {
		return "", fmt.Errorf("template %s not found: %w", r.TemplateName, err)
	}
	tmpl, err := template.New(r.TemplateName).Parse(string(content))
	if err != nil {
		return "", fmt.Errorf("parsing template %s: %w", r.TemplateName, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, r.Data); err != nil {
		return "", fmt.Errorf("executing template %s: %w", r.TemplateName, err)
	}
	return buf.String(), nil
}

func (r *RenderTemplate) PlannedDescriptions() ([]action.Description, error) {
	if err := r.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Render %s to %s", r.TemplateName, r.Path))}, nil
}

func (r *RenderTemplate) ExecutedDescriptions() ([]action.Description, error) {
	if err := r.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	if r.delegate != nil {
		return r.delegate.ExecutedDescriptions()
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Remove rendered file %s", r.Path))}, nil
}

func (r *RenderTemplate) TryPlan(ctx context.Context) error {
	rendered, err := r.render()
	if err != nil {
		return action.NewError(action.TagPlanConflict, r.TracingSynopsis(), err)
	}
	r.delegate = NewCreateFile(r.Path, rendered, r.Mode, true)
	if err := r.delegate.TryPlan(ctx); err != nil {
		return err
	}
	return r.MarkPlanned()
}

func (r *RenderTemplate) TryExecute(ctx context.Context) error {
	if err := r.RequirePlanned(); err != nil {
		return err
	}
	if err := r.delegate.TryExecute(ctx); err != nil {
		return action.Enrich(err, r.TracingSynopsis())
	}
	return r.MarkCompleted()
}

func (r *RenderTemplate) TryRevert(ctx context.Context) error {
	if err := r.RequireCompleted(); err != nil {
		return err
	}
	if err := r.delegate.TryRevert(ctx); err != nil {
		return action.Enrich(err, r.TracingSynopsis())
	}
	return r.MarkReverted()
}

type renderTemplateFields struct {
	TemplateName string                 `json:"template_name"`
	Path         string                 `json:"path"`
	Data         map[string]any         `json:"data"`
	Mode         uint32                 `json:"mode"`
	Delegate     json.RawMessage        `json:"delegate,omitempty"`
}

func (r *RenderTemplate) MarshalFields() (json.RawMessage, error) {
	var delegate json.RawMessage
	if r.delegate != nil {
		env, err := action.Marshal(r.delegate)
		if err != nil {
			return nil, err
		}
		delegate = env.Fields
	}
	return json.Marshal(renderTemplateFields{r.TemplateName, r.Path, r.Data, uint32(r.Mode), delegate})
}

func (r *RenderTemplate) UnmarshalFields(data json.RawMessage) error {
	var f renderTemplateFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	r.TemplateName, r.Path, r.Data, r.Mode = f.TemplateName, f.Path, f.Data, os.FileMode(f.Mode)
	if len(f.Delegate) > 0 {
		r.delegate = &CreateFile{}
		if err := r.delegate.UnmarshalFields(f.Delegate); err != nil {
			return err
		}
	}
	return nil
}
