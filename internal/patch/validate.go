package patch

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/autus/internal/mandala"
)

// Validate checks a raw patch for the given page and returns a sanitized
// copy. Numbers outside their range are clamped, not rejected. Unknown keys,
// wrong types and out-of-enum values return a *ValidationError.
func Validate(page Page, raw map[string]any) (Patch, error) {
	switch page {
	case Page1:
		return validatePage1(raw)
	case Page2:
		return validatePage2(raw)
	case Page3:
		return validatePage3(raw)
	default:
		return nil, invalid(page, "page", ReasonInvalidPage, int(page))
	}
}

// ValidateDocument validates a raw patch that names its own page under the
// "page" key, as patch documents in scripts and CLI input do.
func ValidateDocument(doc map[string]any) (Patch, error) {
	pageVal, ok := doc["page"]
	if !ok {
		return nil, invalid(0, "page", ReasonMissingField, nil)
	}
	page, err := ParsePage(pageVal)
	if err != nil {
		return nil, err
	}
	body := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != "page" {
			body[k] = v
		}
	}
	return Validate(page, body)
}

func validatePage1(raw map[string]any) (Patch, error) {
	var p Page1Patch
	for _, key := range sortedKeys(raw) {
		val := raw[key]
		switch key {
		case "mass_modifier":
			f, err := number(Page1, key, val)
			if err != nil {
				return nil, err
			}
			f = mandala.Clamp(f, MassModifierMin, MassModifierMax)
			p.MassModifier = &f
		case "horizon_override":
			s, ok := val.(string)
			if !ok {
				return nil, invalid(Page1, key, ReasonInvalidType, val)
			}
			h := Horizon(s)
			if !h.Valid() {
				return nil, invalid(Page1, key, ReasonInvalidEnum, val)
			}
			p.HorizonOverride = &h
		default:
			return nil, invalid(Page1, key, ReasonInvalidKey, nil)
		}
	}
	return p, nil
}

func validatePage2(raw map[string]any) (Patch, error) {
	var p Page2Patch
	for _, key := range sortedKeys(raw) {
		val := raw[key]
		switch key {
		case "mass_filter":
			f, err := number(Page2, key, val)
			if err != nil {
				return nil, err
			}
			f = mandala.Clamp(f, MassFilterMin, MassFilterMax)
			p.MassFilter = &f
		case "virtual_anchor_shift":
			shift, err := pair(Page2, key, val, AnchorShiftMin, AnchorShiftMax)
			if err != nil {
				return nil, err
			}
			p.AnchorShift = &shift
		case "ops":
			list, ok := val.([]any)
			if !ok {
				return nil, invalid(Page2, key, ReasonInvalidType, val)
			}
			ops := make([]NodeOp, 0, len(list))
			for i, item := range list {
				op, err := validateOp(i, item)
				if err != nil {
					return nil, err
				}
				ops = append(ops, op)
			}
			p.Ops = ops
		default:
			return nil, invalid(Page2, key, ReasonInvalidKey, nil)
		}
	}
	return p, nil
}

// opFields lists the payload keys each operation type accepts beyond the
// common type/op_id/timestamp_ms/node_id, and whether each is required.
var opFields = map[OpType]map[string]bool{
	OpCreate: {"mass": false, "position": false},
	OpDelete: {},
	OpUpdate: {"mass": true},
	OpMove:   {"position": true},
}

func validateOp(index int, item any) (NodeOp, error) {
	prefix := fmt.Sprintf("ops[%d]", index)
	m, ok := item.(map[string]any)
	if !ok {
		return NodeOp{}, invalid(Page2, prefix, ReasonInvalidType, item)
	}

	var op NodeOp

	typeVal, ok := m["type"]
	if !ok {
		return NodeOp{}, invalid(Page2, prefix+".type", ReasonMissingField, nil)
	}
	typeStr, ok := typeVal.(string)
	if !ok {
		return NodeOp{}, invalid(Page2, prefix+".type", ReasonInvalidType, typeVal)
	}
	op.Type = OpType(typeStr)
	if !op.Type.Valid() {
		return NodeOp{}, invalid(Page2, prefix+".type", ReasonInvalidEnum, typeVal)
	}

	opID, err := requiredString(m, prefix, "op_id")
	if err != nil {
		return NodeOp{}, err
	}
	op.OpID = opID

	nodeID, err := requiredString(m, prefix, "node_id")
	if err != nil {
		return NodeOp{}, err
	}
	op.NodeID = nodeID

	tsVal, ok := m["timestamp_ms"]
	if !ok {
		return NodeOp{}, invalid(Page2, prefix+".timestamp_ms", ReasonMissingField, nil)
	}
	ts, err := integer(Page2, prefix+".timestamp_ms", tsVal)
	if err != nil {
		return NodeOp{}, err
	}
	if ts < 0 {
		return NodeOp{}, invalid(Page2, prefix+".timestamp_ms", ReasonInvalidValue, tsVal)
	}
	op.TimestampMs = ts

	allowed := opFields[op.Type]
	for _, key := range sortedKeys(m) {
		switch key {
		case "type", "op_id", "node_id", "timestamp_ms":
			continue
		}
		if _, ok := allowed[key]; !ok {
			return NodeOp{}, invalid(Page2, prefix+"."+key, ReasonInvalidKey, nil)
		}
	}
	for key, required := range allowed {
		if _, present := m[key]; required && !present {
			return NodeOp{}, invalid(Page2, prefix+"."+key, ReasonMissingField, nil)
		}
	}

	if v, ok := m["mass"]; ok {
		f, err := number(Page2, prefix+".mass", v)
		if err != nil {
			return NodeOp{}, err
		}
		f = mandala.Clamp(f, NodeMassMin, NodeMassMax)
		op.Mass = &f
	}
	if v, ok := m["position"]; ok {
		pos, err := pair(Page2, prefix+".position", v, PositionMin, PositionMax)
		if err != nil {
			return NodeOp{}, err
		}
		op.Position = &pos
	}

	return op, nil
}

func validatePage3(raw map[string]any) (Patch, error) {
	for _, key := range sortedKeys(raw) {
		if key != "allocations" {
			return nil, invalid(Page3, key, ReasonInvalidKey, nil)
		}
	}

	val, ok := raw["allocations"]
	if !ok {
		return nil, invalid(Page3, "allocations", ReasonMissingField, nil)
	}
	m, ok := val.(map[string]any)
	if !ok {
		return nil, invalid(Page3, "allocations", ReasonInvalidType, val)
	}

	weights := make(map[string]float64, len(m))
	for _, dir := range sortedKeys(m) {
		key := "allocations." + dir
		if _, ok := mandala.ParseDirection(dir); !ok {
			return nil, invalid(Page3, key, ReasonInvalidKey, nil)
		}
		f, err := number(Page3, key, m[dir])
		if err != nil {
			return nil, err
		}
		if f < 0 {
			return nil, invalid(Page3, key, ReasonInvalidValue, m[dir])
		}
		weights[dir] = f
	}

	alloc, err := mandala.Normalize(weights)
	if err != nil {
		return nil, invalid(Page3, "allocations", ReasonInvalidValue, err.Error())
	}
	return Page3Patch{Allocations: alloc}, nil
}

// requiredString returns the NFC form of a non-empty string field, so ids
// that serialize identically also compare equal.
func requiredString(m map[string]any, prefix, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", invalid(Page2, prefix+"."+key, ReasonMissingField, nil)
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(Page2, prefix+"."+key, ReasonInvalidType, v)
	}
	if s == "" {
		return "", invalid(Page2, prefix+"."+key, ReasonInvalidValue, v)
	}
	return norm.NFC.String(s), nil
}

// number accepts the numeric shapes produced by encoding/json (float64,
// json.Number) and yaml.v3 (int, float64). Non-finite values are rejected.
func number(page Page, key string, v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, invalid(page, key, ReasonInvalidValue, v)
		}
		f = parsed
	default:
		return 0, invalid(page, key, ReasonInvalidType, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalid(page, key, ReasonInvalidValue, v)
	}
	return f, nil
}

// integer accepts integral numbers, including float64 values without a
// fractional part as produced by encoding/json without UseNumber.
func integer(page Page, key string, v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, invalid(page, key, ReasonInvalidType, v)
		}
		return i, nil
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return 0, invalid(page, key, ReasonInvalidType, v)
		}
		return int64(n), nil
	default:
		return 0, invalid(page, key, ReasonInvalidType, v)
	}
}

func pair(page Page, key string, v any, lo, hi float64) ([2]float64, error) {
	list, ok := v.([]any)
	if !ok {
		return [2]float64{}, invalid(page, key, ReasonInvalidType, v)
	}
	if len(list) != 2 {
		return [2]float64{}, invalid(page, key, ReasonInvalidLength, len(list))
	}
	var out [2]float64
	for i, item := range list {
		f, err := number(page, fmt.Sprintf("%s[%d]", key, i), item)
		if err != nil {
			return [2]float64{}, err
		}
		out[i] = mandala.Clamp(f, lo, hi)
	}
	return out, nil
}

// sortedKeys makes validation deterministic: the first offending key in
// lexical order is the one reported.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
