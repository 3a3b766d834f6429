package paramgrid

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// hclDefaultsFile is the block layout of an HCL defaults document:
//
//	label "year" {
//	  type = "int"
//	  range {
//	    min = 2019
//	    max = 2022
//	  }
//	}
//
//	operators {
//	  label_to_extend = "year"
//	}
//
//	parameter "rate" {
//	  type  = "float"
//	  value = [{ year = 2019, value = 0.1 }]
//	}
type hclDefaultsFile struct {
	Labels     []*hclLabel     `hcl:"label,block"`
	Operators  *hclOperators   `hcl:"operators,block"`
	Parameters []*hclParameter `hcl:"parameter,block"`
}

type hclLabel struct {
	Name    string         `hcl:"name,label"`
	Type    string         `hcl:"type,optional"`
	Values  hcl.Expression `hcl:"values,optional"`
	Choices hcl.Expression `hcl:"choices,optional"`
	Range   *hclRange      `hcl:"range,block"`
}

type hclRange struct {
	Min  hcl.Expression `hcl:"min"`
	Max  hcl.Expression `hcl:"max"`
	Step hcl.Expression `hcl:"step,optional"`
}

type hclOperators struct {
	LabelToExtend  string `hcl:"label_to_extend,optional"`
	UsesExtendFunc bool   `hcl:"uses_extend_func,optional"`
}

type hclParameter struct {
	Name        string         `hcl:"name,label"`
	Title       string         `hcl:"title,optional"`
	Description string         `hcl:"description,optional"`
	Type        string         `hcl:"type,optional"`
	NumberDims  int            `hcl:"number_dims,optional"`
	Indexed     bool           `hcl:"indexed,optional"`
	Value       hcl.Expression `hcl:"value"`
}

// DecodeDefaultsHCL parses an HCL defaults document. filename is used in
// diagnostics only. Blocks carry the same fields as the JSON sections.
func DecodeDefaultsHCL(data []byte, filename string) (*Defaults, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidDefaults, filename, diags)
	}
	var doc hclDefaultsFile
	if diags := gohcl.DecodeBody(file.Body, nil, &doc); diags.HasErrors() {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidDefaults, filename, diags)
	}

	raw := rawDefaults{source: filename}
	for _, block := range doc.Labels {
		payload, err := block.payload()
		if err != nil {
			return nil, fmt.Errorf("%w: label %q: %v", ErrInvalidDefaults, block.Name, err)
		}
		raw.labels = append(raw.labels, rawSection{name: block.Name, payload: payload})
	}
	if doc.Operators != nil {
		raw.operators = map[string]any{
			"label_to_extend":  doc.Operators.LabelToExtend,
			"uses_extend_func": doc.Operators.UsesExtendFunc,
		}
	}
	for _, block := range doc.Parameters {
		payload, err := block.payload()
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %q: %v", ErrInvalidDefaults, block.Name, err)
		}
		raw.params = append(raw.params, rawSection{name: block.Name, payload: payload})
	}
	return raw.build()
}

func (l *hclLabel) payload() (map[string]any, error) {
	out := map[string]any{"type": l.Type}
	values, err := expressionValue(l.Values)
	if err != nil {
		return nil, fmt.Errorf("values: %w", err)
	}
	if values != nil {
		out["values"] = values
	}
	validators := map[string]any{}
	choices, err := expressionValue(l.Choices)
	if err != nil {
		return nil, fmt.Errorf("choices: %w", err)
	}
	if choices != nil {
		validators["choice"] = map[string]any{"choices": choices}
	}
	if l.Range != nil {
		bounds := map[string]any{}
		for name, expr := range map[string]hcl.Expression{"min": l.Range.Min, "max": l.Range.Max, "step": l.Range.Step} {
			v, err := expressionValue(expr)
			if err != nil {
				return nil, fmt.Errorf("range %s: %w", name, err)
			}
			if v != nil {
				bounds[name] = v
			}
		}
		validators["range"] = bounds
	}
	out["validators"] = validators
	return out, nil
}

func (p *hclParameter) payload() (map[string]any, error) {
	value, err := expressionValue(p.Value)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	if value == nil {
		return nil, fmt.Errorf("has no %q attribute", ValueField)
	}
	return map[string]any{
		"title":       p.Title,
		"description": p.Description,
		"type":        p.Type,
		"number_dims": p.NumberDims,
		"indexed":     p.Indexed,
		ValueField:    value,
	}, nil
}

// expressionValue evaluates a literal expression. Absent optional
// attributes evaluate to nil.
func expressionValue(expr hcl.Expression) (any, error) {
	if expr == nil {
		return nil, nil
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	return ctyToGo(v)
}

// ctyToGo converts a known cty value into the plain Go shapes a JSON
// document decodes to. Whole numbers become int64.
func ctyToGo(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	case ty.IsListType(), ty.IsTupleType(), ty.IsSetType():
		out := []any{}
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			item, err := ctyToGo(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case ty.IsObjectType(), ty.IsMapType():
		out := map[string]any{}
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			item, err := ctyToGo(elem)
			if err != nil {
				return nil, err
			}
			out[key.AsString()] = item
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
}
