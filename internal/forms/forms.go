// Package forms serves the static intake templates and validates answers
// submitted against them.
package forms

import (
	_ "embed"
	"fmt"
	"net/mail"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldRating   FieldType = "rating"
	FieldFile     FieldType = "file"
	FieldURL      FieldType = "url"
	FieldEmail    FieldType = "email"
	FieldNumber   FieldType = "number"
)

type Field struct {
	ID          string    `json:"id" yaml:"-"`
	Type        FieldType `json:"type" yaml:"type"`
	Label       string    `json:"label" yaml:"label"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder"`
	HelpText    string    `json:"help_text,omitempty" yaml:"help_text"`
	Required    bool      `json:"required" yaml:"required"`
	Options     []string  `json:"options,omitempty" yaml:"options"`
	Min         *float64  `json:"min,omitempty" yaml:"min"`
	Max         *float64  `json:"max,omitempty" yaml:"max"`
}

type Template struct {
	TemplateType string  `json:"template_type" yaml:"template_type"`
	OptionLabel  string  `json:"option_label" yaml:"option_label"`
	Title        string  `json:"title" yaml:"title"`
	Description  string  `json:"description" yaml:"description"`
	Fields       []Field `json:"fields" yaml:"fields"`
}

// fieldNamespace seeds the field id derivation.
var fieldNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://legitcheck/forms"))

// FieldID is the stable id of a template field.
func FieldID(templateType, label string) string {
	return uuid.NewSHA1(fieldNamespace, []byte(templateType+"/"+label)).String()
}

// Catalog holds the parsed templates in file order.
type Catalog struct {
	templates []Template
	byType    map[string]int
}

// Load parses the embedded templates.
func Load() (*Catalog, error) {
	return Parse(templatesYAML)
}

// Parse builds a catalog from YAML and assigns field ids.
func Parse(data []byte) (*Catalog, error) {
	var templates []Template
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parsing form templates: %w", err)
	}
	c := &Catalog{templates: templates, byType: make(map[string]int, len(templates))}
	for i := range c.templates {
		t := &c.templates[i]
		if t.TemplateType == "" {
			return nil, fmt.Errorf("template %d has no template_type", i)
		}
		if _, dup := c.byType[t.TemplateType]; dup {
			return nil, fmt.Errorf("duplicate template %q", t.TemplateType)
		}
		c.byType[t.TemplateType] = i
		for j := range t.Fields {
			t.Fields[j].ID = FieldID(t.TemplateType, t.Fields[j].Label)
		}
	}
	return c, nil
}

// All returns every template.
func (c *Catalog) All() []Template {
	return slices.Clone(c.templates)
}

// Get returns the template of the given type.
func (c *Catalog) Get(templateType string) (Template, bool) {
	i, ok := c.byType[templateType]
	if !ok {
		return Template{}, false
	}
	return c.templates[i], true
}

// ValidationError lists every problem found in a set of answers.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid form responses: " + strings.Join(e.Problems, "; ")
}

// Validate checks answers keyed by field id or label against the template.
// Unknown keys are accepted as extra context.
func (t Template) Validate(responses map[string]any) error {
	var problems []string
	for _, f := range t.Fields {
		v, ok := responses[f.ID]
		if !ok {
			v, ok = responses[f.Label]
		}
		if !ok || isBlank(v) {
			if f.Required && f.Type != FieldFile {
				problems = append(problems, fmt.Sprintf("%s is required", f.Label))
			}
			continue
		}
		if msg := f.check(v); msg != "" {
			problems = append(problems, fmt.Sprintf("%s %s", f.Label, msg))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	}
	return false
}

func (f Field) check(v any) string {
	switch f.Type {
	case FieldSelect:
		s, ok := v.(string)
		if !ok || !slices.Contains(f.Options, s) {
			return "must be one of the listed options"
		}
	case FieldRating:
		if len(f.Options) > 0 {
			s, ok := v.(string)
			if !ok || !slices.Contains(f.Options, s) {
				return "must be one of the listed options"
			}
			return ""
		}
		return f.checkNumber(v)
	case FieldNumber:
		return f.checkNumber(v)
	case FieldURL:
		s, _ := v.(string)
		u, err := url.Parse(strings.TrimSpace(s))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "must be an http(s) URL"
		}
	case FieldEmail:
		s, _ := v.(string)
		if _, err := mail.ParseAddress(strings.TrimSpace(s)); err != nil {
			return "must be an email address"
		}
	}
	return ""
}

func (f Field) checkNumber(v any) string {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case int:
		n = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return "must be a number"
		}
		n = parsed
	default:
		return "must be a number"
	}
	if f.Min != nil && n < *f.Min {
		return fmt.Sprintf("must be at least %g", *f.Min)
	}
	if f.Max != nil && n > *f.Max {
		return fmt.Sprintf("must be at most %g", *f.Max)
	}
	return ""
}
