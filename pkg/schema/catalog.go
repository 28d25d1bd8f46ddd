package schema

// NodeKind distinguishes nodes that may contain children.
type NodeKind string

const (
	KindLeaf  NodeKind = "leaf"
	KindGroup NodeKind = "group"
)

// PortGroup is the side of a node a port sits on: in ports are sinks (top),
// out ports are sources (bottom).
type PortGroup string

const (
	PortIn  PortGroup = "in"
	PortOut PortGroup = "out"
)

// Default port ids given to node types that declare no ports.
const (
	DefaultInPort  = "in"
	DefaultOutPort = "out"
)

// Pseudo node types placed on every new document.
const (
	TypeStart = "start"
	TypeEnd   = "end"
)

// PortSpec is a connection point declared by a node type.
// MaxConnections of 0 means unbounded.
type PortSpec struct {
	ID             string    `json:"id" yaml:"id"`
	Group          PortGroup `json:"group" yaml:"group"`
	MaxConnections int       `json:"maxConnections,omitempty" yaml:"maxConnections,omitempty"`
}

// NodeTypeDescriptor is one catalog entry as supplied by the host.
// Zero sizes fall back to the kind's template.
type NodeTypeDescriptor struct {
	ID        string      `json:"id" yaml:"id"`
	Name      string      `json:"name" yaml:"name"`
	Kind      NodeKind    `json:"kind,omitempty" yaml:"kind,omitempty"`
	Icon      string      `json:"icon,omitempty" yaml:"icon,omitempty"`
	Category  string      `json:"category,omitempty" yaml:"category,omitempty"`
	Hidden    bool        `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Fixed     bool        `json:"fixed,omitempty" yaml:"fixed,omitempty"`
	Width     float64     `json:"width,omitempty" yaml:"width,omitempty"`
	Height    float64     `json:"height,omitempty" yaml:"height,omitempty"`
	MinWidth  float64     `json:"minWidth,omitempty" yaml:"minWidth,omitempty"`
	MinHeight float64     `json:"minHeight,omitempty" yaml:"minHeight,omitempty"`
	MaxWidth  float64     `json:"maxWidth,omitempty" yaml:"maxWidth,omitempty"`
	MaxHeight float64     `json:"maxHeight,omitempty" yaml:"maxHeight,omitempty"`
	Ports     []PortSpec  `json:"ports,omitempty" yaml:"ports,omitempty"`
	Fields    []FieldSpec `json:"fields,omitempty" yaml:"fields,omitempty"`
	Component string      `json:"component,omitempty" yaml:"component,omitempty"`
}

// Field types understood by the form engine.
const (
	FieldInput    = "input"
	FieldText     = "textarea"
	FieldNumber   = "number"
	FieldSwitch   = "switch"
	FieldRadio    = "radio"
	FieldSelect   = "select"
	FieldCron     = "cron"
	FieldCode     = "code"
	FieldMap      = "map"
	FieldParams   = "params"
	FieldPassword = "password"
	FieldInputs   = "inputs"
)

// FieldSpec describes one form field of a node type.
type FieldSpec struct {
	Prop        string        `json:"prop" yaml:"prop"`
	Label       string        `json:"label" yaml:"label"`
	Type        string        `json:"type" yaml:"type"`
	Value       any           `json:"value,omitempty" yaml:"value,omitempty"`
	Placeholder string        `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Help        string        `json:"help,omitempty" yaml:"help,omitempty"`
	Required    bool          `json:"required,omitempty" yaml:"required,omitempty"`
	Language    string        `json:"language,omitempty" yaml:"language,omitempty"`
	Options     []FieldOption `json:"options,omitempty" yaml:"options,omitempty"`
	VisibleWhen *Predicate    `json:"visibleWhen,omitempty" yaml:"visibleWhen,omitempty"`
}

// FieldOption is a choice for radio/select fields.
type FieldOption struct {
	Label string `json:"label" yaml:"label"`
	Value any    `json:"value" yaml:"value"`
}

// Predicate is a boolean expression over the current form state.
// Engine is one of "expr" (default), "cel" or "jq".
type Predicate struct {
	Engine     string `json:"engine,omitempty" yaml:"engine,omitempty"`
	Expression string `json:"expression" yaml:"expression"`
}
