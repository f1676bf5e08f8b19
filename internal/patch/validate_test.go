package patch

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/autus/internal/mandala"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func requireReason(t *testing.T, err error, reason, key string) {
	t.Helper()
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, reason, ve.Reason, "reason")
	if key != "" {
		assert.Equal(t, key, ve.Key, "key")
	}
}

func TestValidatePage1_ClampsMassModifier(t *testing.T) {
	p, err := Validate(Page1, map[string]any{"mass_modifier": 10.0})
	require.NoError(t, err)

	p1, ok := p.(Page1Patch)
	require.True(t, ok)
	require.NotNil(t, p1.MassModifier)
	assert.Equal(t, 0.5, *p1.MassModifier)

	p, err = Validate(Page1, map[string]any{"mass_modifier": -3})
	require.NoError(t, err)
	assert.Equal(t, -0.5, *p.(Page1Patch).MassModifier)
}

func TestValidatePage1_Horizon(t *testing.T) {
	for _, h := range Horizons() {
		p, err := Validate(Page1, map[string]any{"horizon_override": string(h)})
		require.NoError(t, err)
		assert.Equal(t, h, *p.(Page1Patch).HorizonOverride)
	}

	_, err := Validate(Page1, map[string]any{"horizon_override": "D14"})
	requireReason(t, err, ReasonInvalidEnum, "horizon_override")

	_, err = Validate(Page1, map[string]any{"horizon_override": 30})
	requireReason(t, err, ReasonInvalidType, "horizon_override")
}

func TestValidatePage1_RejectsUnknownKey(t *testing.T) {
	_, err := Validate(Page1, map[string]any{"mass_modifier": 0.1, "energy": 1.0})
	requireReason(t, err, ReasonInvalidKey, "energy")
	assert.Contains(t, err.Error(), "invalid_patch_key")
	assert.Contains(t, err.Error(), "page1")
}

func TestValidatePage1_RejectsNonNumeric(t *testing.T) {
	_, err := Validate(Page1, map[string]any{"mass_modifier": "big"})
	requireReason(t, err, ReasonInvalidType, "mass_modifier")

	_, err = Validate(Page1, map[string]any{"mass_modifier": math.NaN()})
	requireReason(t, err, ReasonInvalidValue, "mass_modifier")
}

func TestValidatePage1_Empty(t *testing.T) {
	p, err := Validate(Page1, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, Page1Patch{}, p)
}

func TestValidatePage2_Full(t *testing.T) {
	raw := decode(t, `{
		"mass_filter": 1.7,
		"virtual_anchor_shift": [0.25, -4],
		"ops": [
			{"type": "CREATE", "op_id": "op-1", "timestamp_ms": 1000, "node_id": "a", "mass": 0.4, "position": [0.1, 0.2]},
			{"type": "MOVE", "op_id": "op-2", "timestamp_ms": 1001, "node_id": "a", "position": [2, 0]},
			{"type": "UPDATE", "op_id": "op-3", "timestamp_ms": 1002, "node_id": "a", "mass": -1},
			{"type": "DELETE", "op_id": "op-4", "timestamp_ms": 1003, "node_id": "b"}
		]
	}`)

	p, err := Validate(Page2, raw)
	require.NoError(t, err)
	p2 := p.(Page2Patch)

	assert.Equal(t, 1.0, *p2.MassFilter)
	assert.Equal(t, [2]float64{0.25, -1}, *p2.AnchorShift)
	require.Len(t, p2.Ops, 4)

	assert.Equal(t, OpCreate, p2.Ops[0].Type)
	assert.Equal(t, 0.4, *p2.Ops[0].Mass)
	assert.Equal(t, [2]float64{0.1, 0.2}, *p2.Ops[0].Position)

	assert.Equal(t, [2]float64{1, 0}, *p2.Ops[1].Position)
	assert.Equal(t, 0.0, *p2.Ops[2].Mass)
	assert.Equal(t, "b", p2.Ops[3].NodeID)
	assert.Equal(t, int64(1003), p2.Ops[3].TimestampMs)
	assert.Nil(t, p2.Ops[3].Mass)
}

func TestValidatePage2_OpErrors(t *testing.T) {
	tests := []struct {
		name   string
		op     string
		reason string
		key    string
	}{
		{"bad type", `{"type": "RENAME", "op_id": "x", "timestamp_ms": 1, "node_id": "n"}`, ReasonInvalidEnum, "ops[0].type"},
		{"missing type", `{"op_id": "x", "timestamp_ms": 1, "node_id": "n"}`, ReasonMissingField, "ops[0].type"},
		{"missing op id", `{"type": "DELETE", "timestamp_ms": 1, "node_id": "n"}`, ReasonMissingField, "ops[0].op_id"},
		{"empty node id", `{"type": "DELETE", "op_id": "x", "timestamp_ms": 1, "node_id": ""}`, ReasonInvalidValue, "ops[0].node_id"},
		{"missing timestamp", `{"type": "DELETE", "op_id": "x", "node_id": "n"}`, ReasonMissingField, "ops[0].timestamp_ms"},
		{"fractional timestamp", `{"type": "DELETE", "op_id": "x", "timestamp_ms": 1.5, "node_id": "n"}`, ReasonInvalidType, "ops[0].timestamp_ms"},
		{"negative timestamp", `{"type": "DELETE", "op_id": "x", "timestamp_ms": -1, "node_id": "n"}`, ReasonInvalidValue, "ops[0].timestamp_ms"},
		{"update needs mass", `{"type": "UPDATE", "op_id": "x", "timestamp_ms": 1, "node_id": "n"}`, ReasonMissingField, "ops[0].mass"},
		{"move needs position", `{"type": "MOVE", "op_id": "x", "timestamp_ms": 1, "node_id": "n"}`, ReasonMissingField, "ops[0].position"},
		{"delete takes no payload", `{"type": "DELETE", "op_id": "x", "timestamp_ms": 1, "node_id": "n", "mass": 1}`, ReasonInvalidKey, "ops[0].mass"},
		{"unknown op field", `{"type": "CREATE", "op_id": "x", "timestamp_ms": 1, "node_id": "n", "color": "red"}`, ReasonInvalidKey, "ops[0].color"},
		{"short position", `{"type": "MOVE", "op_id": "x", "timestamp_ms": 1, "node_id": "n", "position": [1]}`, ReasonInvalidLength, "ops[0].position"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := decode(t, `{"ops": [`+tt.op+`]}`)
			_, err := Validate(Page2, raw)
			requireReason(t, err, tt.reason, tt.key)
		})
	}
}

func TestValidatePage2_NormalizesIDs(t *testing.T) {
	raw := map[string]any{
		"ops": []any{
			map[string]any{"type": "DELETE", "op_id": "op-e\u0301", "timestamp_ms": 1, "node_id": "e\u0301"},
		},
	}
	p, err := Validate(Page2, raw)
	require.NoError(t, err)
	op := p.(Page2Patch).Ops[0]
	assert.Equal(t, "\u00e9", op.NodeID)
	assert.Equal(t, "op-\u00e9", op.OpID)
}

func TestValidatePage2_ShapeErrors(t *testing.T) {
	_, err := Validate(Page2, map[string]any{"ops": "CREATE"})
	requireReason(t, err, ReasonInvalidType, "ops")

	_, err = Validate(Page2, map[string]any{"ops": []any{"CREATE"}})
	requireReason(t, err, ReasonInvalidType, "ops[0]")

	_, err = Validate(Page2, map[string]any{"virtual_anchor_shift": []any{1.0, 2.0, 3.0}})
	requireReason(t, err, ReasonInvalidLength, "virtual_anchor_shift")

	_, err = Validate(Page2, map[string]any{"nodes": []any{}})
	requireReason(t, err, ReasonInvalidKey, "nodes")
}

func TestValidatePage2_YAMLShapes(t *testing.T) {
	// yaml.v3 decodes integers as int.
	raw := map[string]any{
		"ops": []any{
			map[string]any{"type": "CREATE", "op_id": "o", "timestamp_ms": 5, "node_id": "n", "mass": 1},
		},
	}
	p, err := Validate(Page2, raw)
	require.NoError(t, err)
	op := p.(Page2Patch).Ops[0]
	assert.Equal(t, int64(5), op.TimestampMs)
	assert.Equal(t, 1.0, *op.Mass)
}

func TestValidatePage3_Normalizes(t *testing.T) {
	p, err := Validate(Page3, decode(t, `{"allocations": {"E": 0.6, "S": 0.2, "NW": 0.2}}`))
	require.NoError(t, err)
	a := p.(Page3Patch).Allocations
	assert.InDelta(t, 1.0, a.Sum(), mandala.SumTolerance)

	p, err = Validate(Page3, decode(t, `{"allocations": {}}`))
	require.NoError(t, err)
	assert.Equal(t, mandala.Default(), p.(Page3Patch).Allocations)

	p, err = Validate(Page3, decode(t, `{"allocations": {"N": 2, "S": 2}}`))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p.(Page3Patch).Allocations[mandala.N], 1e-12)
}

func TestValidatePage3_LargeWeights(t *testing.T) {
	p, err := Validate(Page3, decode(t, `{"allocations": {"E": 1e308, "S": 1e308}}`))
	require.NoError(t, err)
	a := p.(Page3Patch).Allocations
	assert.InDelta(t, 0.5, a[mandala.E], 1e-12)
	assert.InDelta(t, 1.0, a.Sum(), mandala.SumTolerance)
}

func TestValidatePage3_Errors(t *testing.T) {
	_, err := Validate(Page3, map[string]any{})
	requireReason(t, err, ReasonMissingField, "allocations")

	_, err = Validate(Page3, decode(t, `{"allocations": {"UP": 1}}`))
	requireReason(t, err, ReasonInvalidKey, "allocations.UP")

	_, err = Validate(Page3, decode(t, `{"allocations": {"E": -1}}`))
	requireReason(t, err, ReasonInvalidValue, "allocations.E")

	_, err = Validate(Page3, decode(t, `{"allocations": [1, 0]}`))
	requireReason(t, err, ReasonInvalidType, "allocations")

	_, err = Validate(Page3, decode(t, `{"allocations": {}, "mass": 1}`))
	requireReason(t, err, ReasonInvalidKey, "mass")
}

func TestValidate_InvalidPage(t *testing.T) {
	_, err := Validate(Page(4), map[string]any{})
	requireReason(t, err, ReasonInvalidPage, "page")
}

func TestValidateDocument(t *testing.T) {
	p, err := ValidateDocument(decode(t, `{"page": 1, "mass_modifier": 0.2}`))
	require.NoError(t, err)
	assert.Equal(t, Page1, p.Page())

	p, err = ValidateDocument(decode(t, `{"page": "page3", "allocations": {"S": 1}}`))
	require.NoError(t, err)
	assert.Equal(t, Page3, p.Page())

	_, err = ValidateDocument(decode(t, `{"mass_modifier": 0.2}`))
	requireReason(t, err, ReasonMissingField, "page")

	_, err = ValidateDocument(decode(t, `{"page": 9}`))
	requireReason(t, err, ReasonInvalidPage, "page")
}

func TestParsePage(t *testing.T) {
	for _, in := range []any{2, int64(2), 2.0, json.Number("2"), "2", "page2", " Page2 ", Page2} {
		p, err := ParsePage(in)
		require.NoError(t, err, "%v", in)
		assert.Equal(t, Page2, p)
	}
	for _, in := range []any{0, 2.5, json.Number("2.5"), "two", nil, true} {
		_, err := ParsePage(in)
		assert.Error(t, err, "%v", in)
	}
}

func TestReasonOf(t *testing.T) {
	_, err := Validate(Page1, map[string]any{"x": 1})
	assert.Equal(t, ReasonInvalidKey, ReasonOf(err))
	assert.True(t, IsValidationError(err))
	assert.Equal(t, "", ReasonOf(nil))
}
