package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/autus/internal/kernel"
	"github.com/roach88/autus/internal/patch"
)

// marshalJSON encodes v as compact JSON TEXT with HTML escaping disabled.
// Float64 values round-trip exactly.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline.
	return strings.TrimSpace(buf.String()), nil
}

func marshalSnapshot(st *kernel.State) (string, error) {
	data, err := marshalJSON(st)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

func unmarshalSnapshot(data string) (*kernel.State, error) {
	var st kernel.State
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if st.Nodes == nil {
		st.Nodes = map[string]kernel.Node{}
	}
	if st.Draft.Page2.Ops == nil {
		st.Draft.Page2.Ops = []patch.NodeOp{}
	}
	return &st, nil
}

func marshalDraft(d patch.Draft) (string, error) {
	data, err := marshalJSON(d)
	if err != nil {
		return "", fmt.Errorf("marshal draft: %w", err)
	}
	return data, nil
}

// unmarshalDraft decodes a journaled draft as-is. Drafts were validated
// when staged; running them through the validators again could shift
// clamped or normalized values.
func unmarshalDraft(data string) (patch.Draft, error) {
	d := patch.NewDraft()
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return patch.Draft{}, fmt.Errorf("unmarshal draft: %w", err)
	}
	if d.Page2.Ops == nil {
		d.Page2.Ops = []patch.NodeOp{}
	}
	return d, nil
}

func marshalSteps(steps []string) (string, error) {
	if steps == nil {
		steps = []string{}
	}
	data, err := marshalJSON(steps)
	if err != nil {
		return "", fmt.Errorf("marshal steps: %w", err)
	}
	return data, nil
}

func unmarshalSteps(data string) ([]string, error) {
	var steps []string
	if err := json.Unmarshal([]byte(data), &steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	if steps == nil {
		steps = []string{}
	}
	return steps, nil
}

func marshalView(v kernel.View) (string, error) {
	data, err := marshalJSON(v)
	if err != nil {
		return "", fmt.Errorf("marshal marker state: %w", err)
	}
	return data, nil
}

func unmarshalView(data string) (kernel.View, error) {
	var v kernel.View
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return kernel.View{}, fmt.Errorf("unmarshal marker state: %w", err)
	}
	return v, nil
}
