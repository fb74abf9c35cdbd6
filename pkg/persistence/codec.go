package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format selects the text encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// DecodeError reports a persisted document that cannot produce a runnable schedule.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid schedule document: %s: %s", e.Field, e.Reason)
}

type document struct {
	Name              string        `yaml:"name" json:"name" mapstructure:"name"`
	Email             string        `yaml:"email,omitempty" json:"email,omitempty" mapstructure:"email"`
	CurrentNode       string        `yaml:"current_node" json:"current_node" mapstructure:"current_node"`
	OriginalStartNode string        `yaml:"original_start_node" json:"original_start_node" mapstructure:"original_start_node"`
	Floats            []floatDoc    `yaml:"floats,omitempty" json:"floats,omitempty" mapstructure:"floats"`
	Booleans          []boolDoc     `yaml:"booleans,omitempty" json:"booleans,omitempty" mapstructure:"booleans"`
	Strings           []stringDoc   `yaml:"strings,omitempty" json:"strings,omitempty" mapstructure:"strings"`
	Operators         []operatorDoc `yaml:"operators,omitempty" json:"operators,omitempty" mapstructure:"operators"`
	Jobs              []jobDoc      `yaml:"jobs,omitempty" json:"jobs,omitempty" mapstructure:"jobs"`
	Edges             []edgeDoc     `yaml:"edges,omitempty" json:"edges,omitempty" mapstructure:"edges"`
}

type floatDoc struct {
	Name     string   `yaml:"name" json:"name" mapstructure:"name"`
	Value    float64  `yaml:"value" json:"value" mapstructure:"value"`
	Original *float64 `yaml:"original" json:"original" mapstructure:"original"`
}

type boolDoc struct {
	Name     string `yaml:"name" json:"name" mapstructure:"name"`
	Value    bool   `yaml:"value" json:"value" mapstructure:"value"`
	Original *bool  `yaml:"original" json:"original" mapstructure:"original"`
}

type stringDoc struct {
	Name     string  `yaml:"name" json:"name" mapstructure:"name"`
	Value    string  `yaml:"value" json:"value" mapstructure:"value"`
	Original *string `yaml:"original" json:"original" mapstructure:"original"`
}

type operatorDoc struct {
	Name   string `yaml:"name" json:"name" mapstructure:"name"`
	Type   string `yaml:"type" json:"type" mapstructure:"type"`
	Input1 string `yaml:"input1" json:"input1" mapstructure:"input1"`
	Input2 string `yaml:"input2" json:"input2" mapstructure:"input2"`
	Output string `yaml:"output" json:"output" mapstructure:"output"`
}

type jobDoc struct {
	Name        string `yaml:"name" json:"name" mapstructure:"name"`
	CurrentName string `yaml:"current_name" json:"current_name" mapstructure:"current_name"`
	Mode        string `yaml:"mode" json:"mode" mapstructure:"mode"`
	HasStarted  bool   `yaml:"has_started" json:"has_started" mapstructure:"has_started"`
}

type edgeDoc struct {
	Input       string `yaml:"input" json:"input" mapstructure:"input"`
	Output      string `yaml:"output" json:"output" mapstructure:"output"`
	IsFork      bool   `yaml:"is_fork" json:"is_fork" mapstructure:"is_fork"`
	Condition   string `yaml:"condition,omitempty" json:"condition,omitempty" mapstructure:"condition"`
	OutputFalse string `yaml:"output_false,omitempty" json:"output_false,omitempty" mapstructure:"output_false"`
}

// Marshal encodes the full schedule.
func Marshal(s *domain.Schedule, format Format) ([]byte, error) {
	doc, err := toDocument(s)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML, "":
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// Unmarshal decodes a schedule written by Marshal.
func Unmarshal(data []byte, format Format) (*domain.Schedule, error) {
	raw := map[string]any{}
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse schedule json: %w", err)
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse schedule yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return decodeMap(raw)
}

func decodeMap(raw map[string]any) (*domain.Schedule, error) {
	for _, key := range []string{"name", "current_node", "original_start_node"} {
		if _, ok := raw[key]; !ok {
			return nil, &DecodeError{Field: key, Reason: "missing"}
		}
	}

	var doc document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode schedule document: %w", err)
	}
	return fromDocument(doc)
}

func toDocument(s *domain.Schedule) (*document, error) {
	doc := &document{
		Name:              s.Name,
		Email:             s.Email,
		CurrentNode:       s.CurrentNode,
		OriginalStartNode: s.OriginalStartNode,
	}

	for _, name := range s.Variables.Names("") {
		v, _ := s.Variables.Lookup(name)
		switch v.Kind() {
		case domain.KindFloat:
			cur, _ := v.Current.AsFloat()
			orig, _ := v.Original.AsFloat()
			doc.Floats = append(doc.Floats, floatDoc{Name: name, Value: cur, Original: &orig})
		case domain.KindBool:
			cur, _ := v.Current.AsBool()
			orig, _ := v.Original.AsBool()
			doc.Booleans = append(doc.Booleans, boolDoc{Name: name, Value: cur, Original: &orig})
		case domain.KindString:
			cur, _ := v.Current.AsString()
			orig, _ := v.Original.AsString()
			doc.Strings = append(doc.Strings, stringDoc{Name: name, Value: cur, Original: &orig})
		default:
			return nil, fmt.Errorf("variable '%s' has no kind", name)
		}
	}

	for _, name := range s.OperatorNames() {
		op := s.Operators[name]
		doc.Operators = append(doc.Operators, operatorDoc{
			Name:   name,
			Type:   string(op.Kind),
			Input1: op.Input1,
			Input2: op.Input2,
			Output: op.Output,
		})
	}

	for _, name := range s.JobNames() {
		job := s.Jobs[name]
		doc.Jobs = append(doc.Jobs, jobDoc{
			Name:        name,
			CurrentName: job.CurrentName,
			Mode:        string(job.Mode),
			HasStarted:  job.HasStarted,
		})
	}

	for _, e := range s.Edges {
		ed := edgeDoc{Input: e.From, Output: e.To, IsFork: e.IsFork}
		if e.IsFork {
			ed.Condition = e.Condition
			ed.OutputFalse = e.ToIfFalse
		}
		doc.Edges = append(doc.Edges, ed)
	}
	return doc, nil
}

func fromDocument(doc document) (*domain.Schedule, error) {
	s := domain.NewSchedule(doc.Name)
	s.Email = doc.Email

	put := func(name string, cur, orig domain.Value) error {
		if name == "" {
			return &DecodeError{Field: "variables", Reason: "variable without name"}
		}
		if s.Variables.Has(name) {
			return &DecodeError{Field: "variables", Reason: fmt.Sprintf("'%s' declared twice", name)}
		}
		return s.Variables.Put(name, domain.Variable{Current: cur, Original: orig})
	}
	for _, f := range doc.Floats {
		orig := f.Value
		if f.Original != nil {
			orig = *f.Original
		}
		if err := put(f.Name, domain.FloatValue(f.Value), domain.FloatValue(orig)); err != nil {
			return nil, err
		}
	}
	for _, b := range doc.Booleans {
		orig := b.Value
		if b.Original != nil {
			orig = *b.Original
		}
		if err := put(b.Name, domain.BoolValue(b.Value), domain.BoolValue(orig)); err != nil {
			return nil, err
		}
	}
	for _, str := range doc.Strings {
		orig := str.Value
		if str.Original != nil {
			orig = *str.Original
		}
		if err := put(str.Name, domain.StringValue(str.Value), domain.StringValue(orig)); err != nil {
			return nil, err
		}
	}

	for _, od := range doc.Operators {
		kind := domain.OperatorKind(od.Type)
		if !kind.Valid() {
			return nil, &DecodeError{Field: "operators." + od.Name, Reason: fmt.Sprintf("unknown type %q", od.Type)}
		}
		if od.Name == "" {
			return nil, &DecodeError{Field: "operators", Reason: "operator without name"}
		}
		if _, dup := s.Operators[od.Name]; dup {
			return nil, &DecodeError{Field: "operators." + od.Name, Reason: "declared twice"}
		}
		if od.Name == domain.NodeWait || (od.Name == domain.NodeExit && kind != domain.OpExit) {
			return nil, &DecodeError{Field: "operators." + od.Name, Reason: "reserved node name"}
		}
		s.Operators[od.Name] = domain.NewOperator(kind, od.Input1, od.Input2, od.Output)
	}

	for _, jd := range doc.Jobs {
		if jd.Name == "" {
			return nil, &DecodeError{Field: "jobs", Reason: "job without name"}
		}
		if jd.Name == domain.Undefined || domain.IsReservedName(jd.Name) {
			return nil, &DecodeError{Field: "jobs." + jd.Name, Reason: "reserved node name"}
		}
		if _, dup := s.Jobs[jd.Name]; dup {
			return nil, &DecodeError{Field: "jobs." + jd.Name, Reason: "declared twice"}
		}
		if _, clash := s.Operators[jd.Name]; clash {
			return nil, &DecodeError{Field: "jobs." + jd.Name, Reason: "name is also an operator"}
		}
		mode := domain.JobMode(jd.Mode)
		if mode == "" {
			mode = domain.JobModeNew
		}
		if !mode.Valid() {
			return nil, &DecodeError{Field: "jobs." + jd.Name, Reason: fmt.Sprintf("unknown mode %q", jd.Mode)}
		}
		current := jd.CurrentName
		if current == "" {
			current = jd.Name
		}
		s.Jobs[jd.Name] = domain.Job{CurrentName: current, Mode: mode, HasStarted: jd.HasStarted}
	}

	for i, ed := range doc.Edges {
		if ed.Input == "" || ed.Output == "" {
			return nil, &DecodeError{Field: fmt.Sprintf("edges[%d]", i), Reason: "input and output are required"}
		}
		if !ed.IsFork {
			s.Edges = append(s.Edges, domain.NewEdge(ed.Input, ed.Output))
			continue
		}
		if ed.Condition == "" || ed.OutputFalse == "" {
			return nil, &DecodeError{Field: fmt.Sprintf("edges[%d]", i), Reason: "fork needs condition and output_false"}
		}
		s.Edges = append(s.Edges, domain.NewFork(ed.Input, ed.Condition, ed.Output, ed.OutputFalse))
	}

	if err := checkPosition(s, "current_node", doc.CurrentNode); err != nil {
		return nil, err
	}
	if err := checkPosition(s, "original_start_node", doc.OriginalStartNode); err != nil {
		return nil, err
	}
	s.CurrentNode = doc.CurrentNode
	s.OriginalStartNode = doc.OriginalStartNode
	return s, nil
}

// checkPosition refuses positions that point nowhere. An empty schedule keeps
// the Undefined placeholder.
func checkPosition(s *domain.Schedule, field, node string) error {
	if node == "" {
		return &DecodeError{Field: field, Reason: "empty"}
	}
	if node == domain.Undefined {
		if len(s.Jobs) == 0 && len(s.Operators) == 0 {
			return nil
		}
		return &DecodeError{Field: field, Reason: "undefined in a schedule with nodes"}
	}
	if !s.IsNode(node) {
		return &DecodeError{Field: field, Reason: fmt.Sprintf("'%s' is not a node", node)}
	}
	return nil
}
