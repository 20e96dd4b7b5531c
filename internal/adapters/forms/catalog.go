package forms

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/scoutnotes/internal/domain/rubric"
	"github.com/okian/scoutnotes/pkg/metrics"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Forms []rubric.Form `yaml:"forms"`
}

// Catalog is a fixed set of forms keyed by sport.
type Catalog struct {
	bySport map[string]rubric.Form
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded form catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog file. An empty path yields the embedded catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalog, err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalog, err)
	}
	c := &Catalog{bySport: make(map[string]rubric.Form, len(f.Forms))}
	for _, form := range f.Forms {
		if err := form.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCatalog, err)
		}
		sport := normalizeSport(form.Sport)
		if _, dup := c.bySport[sport]; dup {
			return nil, fmt.Errorf("%w: %w: %s", ErrCatalog, ErrDuplicated, sport)
		}
		c.bySport[sport] = form
	}
	return c, nil
}

// ActiveForm implements Provider.
func (c *Catalog) ActiveForm(_ context.Context, sport string) (rubric.Form, error) {
	form, ok := c.bySport[normalizeSport(sport)]
	metrics.RecordRubricLookup("catalog", ok)
	if !ok {
		return rubric.Form{}, fmt.Errorf("%w: %s", rubric.ErrNotConfigured, sport)
	}
	return form, nil
}

// Forms returns every form in the catalog ordered by sport.
func (c *Catalog) Forms() []rubric.Form {
	out := make([]rubric.Form, 0, len(c.bySport))
	for _, f := range c.bySport {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sport < out[j].Sport })
	return out
}

// Sports lists the sports with an active form.
func (c *Catalog) Sports() []string {
	out := make([]string, 0, len(c.bySport))
	for s := range c.bySport {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func normalizeSport(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
