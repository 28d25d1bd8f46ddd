// Package catalog holds the built-in node type palette and loads custom
// catalogs from YAML or JSON files.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/jobflow/internal/designer"
	"github.com/rendis/jobflow/internal/nodetypes"
	"github.com/rendis/jobflow/pkg/schema"
	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Supported catalog file formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Category is one palette section.
type Category struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Remark string `json:"remark,omitempty" yaml:"remark,omitempty"`
}

// Catalog is a set of node types together with the palette sections they
// belong to and the fields shared by every node and edge.
type Catalog struct {
	Categories   []Category                  `json:"categories,omitempty" yaml:"categories,omitempty"`
	CommonFields []schema.FieldSpec          `json:"commonFields,omitempty" yaml:"commonFields,omitempty"`
	EdgeFields   []schema.FieldSpec          `json:"edgeFields,omitempty" yaml:"edgeFields,omitempty"`
	Types        []schema.NodeTypeDescriptor `json:"types" yaml:"types"`
}

// Checker validates one descriptor.
type Checker interface {
	ValidateDescriptor(desc *schema.NodeTypeDescriptor) error
}

// Builtin returns a fresh copy of the built-in catalog.
func Builtin() (*Catalog, error) {
	c, err := Parse(builtinYAML, FormatYAML)
	if err != nil {
		return nil, fmt.Errorf("parse builtin catalog: %w", err)
	}
	return c, nil
}

// FormatOf infers the catalog format from a file extension.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", schema.NewErrorf(schema.ErrCodeValidation, "unsupported catalog file %q: want .yaml, .yml or .json", path)
	}
}

// LoadFile reads and parses a catalog file.
func LoadFile(path string) (*Catalog, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog. Unknown keys are rejected.
func Parse(data []byte, format string) (*Catalog, error) {
	var c Catalog
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return nil, schema.NewError(schema.ErrCodeValidation, "invalid catalog YAML").WithCause(err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "invalid catalog JSON").WithCause(err)
		}
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown catalog format %q", format)
	}
	return &c, nil
}

// Descriptors returns the catalog's types ready for registration: every
// visible type placed in a category gets the common fields prepended.
func (c *Catalog) Descriptors() []schema.NodeTypeDescriptor {
	out := make([]schema.NodeTypeDescriptor, 0, len(c.Types))
	for _, d := range c.Types {
		if d.Category != "" && !d.Hidden && len(c.CommonFields) > 0 {
			fields := make([]schema.FieldSpec, 0, len(c.CommonFields)+len(d.Fields))
			fields = append(fields, c.CommonFields...)
			d.Fields = append(fields, d.Fields...)
		}
		out = append(out, d)
	}
	return out
}

// Validate runs every checker over every descriptor and reports all
// failures at once.
func (c *Catalog) Validate(checkers ...Checker) error {
	result := &schema.ValidationResult{}
	for i, d := range c.Descriptors() {
		for _, chk := range checkers {
			if err := chk.ValidateDescriptor(&d); err != nil {
				result.AddError(fmt.Sprintf("types[%d]", i), codeOf(err), fmt.Sprintf("node type %q: %s", d.ID, err))
			}
		}
	}
	return result.ToError()
}

// Merge appends other's categories and types. Categories already present
// keep their first definition; shared fields are replaced when other
// declares any.
func (c *Catalog) Merge(other *Catalog) {
	known := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		known[cat.ID] = true
	}
	for _, cat := range other.Categories {
		if !known[cat.ID] {
			c.Categories = append(c.Categories, cat)
			known[cat.ID] = true
		}
	}
	if len(other.CommonFields) > 0 {
		c.CommonFields = other.CommonFields
	}
	if len(other.EdgeFields) > 0 {
		c.EdgeFields = other.EdgeFields
	}
	c.Types = append(c.Types, other.Types...)
}

// Install registers the catalog's descriptors with reg.
func (c *Catalog) Install(reg *nodetypes.Registry) error {
	return reg.RegisterTypes(c.Descriptors()...)
}

// PaletteGroup is a category with its visible node types, in catalog order.
type PaletteGroup struct {
	Category
	Types []schema.NodeTypeDescriptor `json:"types"`
}

// Palette groups the visible types of reg by the catalog's categories.
// Types whose category the catalog does not declare land in trailing groups
// named after the category.
func (c *Catalog) Palette(reg *nodetypes.Registry) []PaletteGroup {
	groups := make([]PaletteGroup, 0, len(c.Categories))
	index := make(map[string]int, len(c.Categories))
	for _, cat := range c.Categories {
		index[cat.ID] = len(groups)
		groups = append(groups, PaletteGroup{Category: cat})
	}
	for _, rc := range reg.Categories() {
		i, ok := index[rc.Name]
		if !ok {
			i = len(groups)
			index[rc.Name] = i
			groups = append(groups, PaletteGroup{Category: Category{ID: rc.Name, Name: rc.Name}})
		}
		for _, nt := range rc.Types {
			groups[i].Types = append(groups[i].Types, nt.Descriptor())
		}
	}
	return groups
}

// DefaultSeeds places start near the top centre of the canvas and end near
// the bottom centre.
func DefaultSeeds() []designer.Seed {
	centre := func(c schema.Size) float64 { return c.Width/2 - 30 }
	return []designer.Seed{
		{TypeID: schema.TypeStart, X: centre, Y: designer.At(40)},
		{TypeID: schema.TypeEnd, X: centre, Y: func(c schema.Size) float64 { return c.Height - 100 }},
	}
}

func codeOf(err error) string {
	if fe, ok := schema.AsFlowError(err); ok {
		return fe.Code
	}
	return schema.ErrCodeValidation
}
