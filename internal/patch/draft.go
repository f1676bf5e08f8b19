package patch

import (
	"github.com/roach88/autus/internal/canon"
	"github.com/roach88/autus/internal/mandala"
)

// Draft holds validated, not-yet-committed patch values for all three
// pages. The zero value is not ready for use; call NewDraft.
type Draft struct {
	Page1 Page1Draft `json:"page1"`
	Page2 Page2Draft `json:"page2"`
	Page3 Page3Draft `json:"page3"`
}

// Page1Draft is the pending mass/horizon override.
type Page1Draft struct {
	MassModifier    float64  `json:"mass_modifier"`
	HorizonOverride *Horizon `json:"horizon_override,omitempty"`
}

// Page2Draft is the pending node operations and anchor changes.
type Page2Draft struct {
	MassFilter  *float64    `json:"mass_filter,omitempty"`
	AnchorShift *[2]float64 `json:"virtual_anchor_shift,omitempty"`
	Ops         []NodeOp    `json:"ops"`
}

// Page3Draft is the pending mandala allocation. Always normalized.
type Page3Draft struct {
	Allocations mandala.Allocation `json:"allocations"`
}

// NewDraft returns the default draft: no modifiers, no ops, and the default
// allocation.
func NewDraft() Draft {
	return Draft{
		Page2: Page2Draft{Ops: []NodeOp{}},
		Page3: Page3Draft{Allocations: mandala.Default()},
	}
}

// Apply merges a validated patch into the draft. Scalar fields overwrite,
// ops append in arrival order, allocations replace.
func (d *Draft) Apply(p Patch) {
	switch v := p.(type) {
	case Page1Patch:
		if v.MassModifier != nil {
			d.Page1.MassModifier = *v.MassModifier
		}
		if v.HorizonOverride != nil {
			h := *v.HorizonOverride
			d.Page1.HorizonOverride = &h
		}
	case Page2Patch:
		if v.MassFilter != nil {
			f := *v.MassFilter
			d.Page2.MassFilter = &f
		}
		if v.AnchorShift != nil {
			s := *v.AnchorShift
			d.Page2.AnchorShift = &s
		}
		for _, op := range v.Ops {
			d.Page2.Ops = append(d.Page2.Ops, op.clone())
		}
	case Page3Patch:
		d.Page3.Allocations = v.Allocations
	}
}

// Clone returns a deep copy.
func (d Draft) Clone() Draft {
	out := Draft{
		Page1: Page1Draft{MassModifier: d.Page1.MassModifier},
		Page2: Page2Draft{Ops: make([]NodeOp, 0, len(d.Page2.Ops))},
		Page3: d.Page3,
	}
	if d.Page1.HorizonOverride != nil {
		h := *d.Page1.HorizonOverride
		out.Page1.HorizonOverride = &h
	}
	if d.Page2.MassFilter != nil {
		f := *d.Page2.MassFilter
		out.Page2.MassFilter = &f
	}
	if d.Page2.AnchorShift != nil {
		s := *d.Page2.AnchorShift
		out.Page2.AnchorShift = &s
	}
	for _, op := range d.Page2.Ops {
		out.Page2.Ops = append(out.Page2.Ops, op.clone())
	}
	return out
}

// IsDefault reports whether the draft carries nothing beyond NewDraft.
func (d Draft) IsDefault() bool {
	return d.Page1.MassModifier == 0 &&
		d.Page1.HorizonOverride == nil &&
		d.Page2.MassFilter == nil &&
		d.Page2.AnchorShift == nil &&
		len(d.Page2.Ops) == 0 &&
		d.Page3.Allocations == mandala.Default()
}

func (op NodeOp) clone() NodeOp {
	out := op
	if op.Mass != nil {
		m := *op.Mass
		out.Mass = &m
	}
	if op.Position != nil {
		p := *op.Position
		out.Position = &p
	}
	return out
}

// Canonical returns the draft as a canonical value for hashing. Absent
// optional fields are written as null so every draft has the same shape.
func (d Draft) Canonical() canon.Object {
	page1 := canon.Object{
		"mass_modifier":    canon.Float(d.Page1.MassModifier),
		"horizon_override": canon.Null{},
	}
	if d.Page1.HorizonOverride != nil {
		page1["horizon_override"] = canon.String(*d.Page1.HorizonOverride)
	}

	ops := make(canon.Array, len(d.Page2.Ops))
	for i, op := range d.Page2.Ops {
		ops[i] = op.Canonical()
	}
	page2 := canon.Object{
		"mass_filter":          canon.Null{},
		"virtual_anchor_shift": canon.Null{},
		"ops":                  ops,
	}
	if d.Page2.MassFilter != nil {
		page2["mass_filter"] = canon.Float(*d.Page2.MassFilter)
	}
	if d.Page2.AnchorShift != nil {
		page2["virtual_anchor_shift"] = canon.Floats(d.Page2.AnchorShift[0], d.Page2.AnchorShift[1])
	}

	return canon.Object{
		"page1": page1,
		"page2": page2,
		"page3": canon.Object{"allocations": AllocationValue(d.Page3.Allocations)},
	}
}

// Hash is the domain-separated hash of the draft's canonical form.
func (d Draft) Hash() (string, error) {
	data, err := canon.MarshalCanonical(d.Canonical())
	if err != nil {
		return "", err
	}
	return canon.DomainHash(canon.DomainDraft, data), nil
}

// Canonical returns the operation as a canonical value.
func (op NodeOp) Canonical() canon.Object {
	obj := canon.Object{
		"type":         canon.String(op.Type),
		"op_id":        canon.String(op.OpID),
		"timestamp_ms": canon.Int(op.TimestampMs),
		"node_id":      canon.String(op.NodeID),
	}
	if op.Mass != nil {
		obj["mass"] = canon.Float(*op.Mass)
	}
	if op.Position != nil {
		obj["position"] = canon.Floats(op.Position[0], op.Position[1])
	}
	return obj
}

// AllocationValue renders an allocation keyed by compass label.
func AllocationValue(a mandala.Allocation) canon.Object {
	obj := make(canon.Object, mandala.NumDirections)
	for _, d := range mandala.Directions() {
		obj[d.String()] = canon.Float(a[d])
	}
	return obj
}
