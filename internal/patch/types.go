package patch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/autus/internal/mandala"
)

// Page selects which patch variant a raw map is validated as.
type Page int

const (
	Page1 Page = 1
	Page2 Page = 2
	Page3 Page = 3
)

// CommitOrder is the order the commit pipeline applies pages in.
var CommitOrder = []Page{Page3, Page1, Page2}

func (p Page) String() string {
	switch p {
	case Page1, Page2, Page3:
		return "page" + strconv.Itoa(int(p))
	default:
		return fmt.Sprintf("Page(%d)", int(p))
	}
}

// ParsePage accepts 1, 2, 3 as integers or strings, and "page1".."page3".
func ParsePage(v any) (Page, error) {
	var n int
	switch val := v.(type) {
	case Page:
		n = int(val)
	case int:
		n = val
	case int64:
		n = int(val)
	case float64:
		if val != float64(int(val)) {
			return 0, invalid(0, "page", ReasonInvalidPage, v)
		}
		n = int(val)
	case json.Number:
		i, err := val.Int64()
		if err != nil {
			return 0, invalid(0, "page", ReasonInvalidPage, v)
		}
		n = int(i)
	case string:
		s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(val)), "page")
		parsed, err := strconv.Atoi(s)
		if err != nil {
			return 0, invalid(0, "page", ReasonInvalidPage, v)
		}
		n = parsed
	default:
		return 0, invalid(0, "page", ReasonInvalidPage, v)
	}

	p := Page(n)
	switch p {
	case Page1, Page2, Page3:
		return p, nil
	}
	return 0, invalid(0, "page", ReasonInvalidPage, v)
}

// Horizon is a planning horizon label.
type Horizon string

const (
	D7   Horizon = "D7"
	D30  Horizon = "D30"
	D90  Horizon = "D90"
	D365 Horizon = "D365"
)

// DefaultHorizon is the horizon of a fresh state.
const DefaultHorizon = D30

// Horizons returns the accepted horizon labels.
func Horizons() []Horizon {
	return []Horizon{D7, D30, D90, D365}
}

// Valid reports whether h is an accepted horizon.
func (h Horizon) Valid() bool {
	for _, v := range Horizons() {
		if h == v {
			return true
		}
	}
	return false
}

// OpType is the kind of node operation.
type OpType string

const (
	OpCreate OpType = "CREATE"
	OpDelete OpType = "DELETE"
	OpUpdate OpType = "UPDATE"
	OpMove   OpType = "MOVE"
)

// Valid reports whether t is one of the four operation types.
func (t OpType) Valid() bool {
	switch t {
	case OpCreate, OpDelete, OpUpdate, OpMove:
		return true
	}
	return false
}

// Patch is a validated page patch. Only Page1Patch, Page2Patch and
// Page3Patch implement it.
type Patch interface {
	Page() Page
	sealed()
}

// Page1Patch overrides mass and horizon. Nil fields are left unchanged.
type Page1Patch struct {
	MassModifier    *float64
	HorizonOverride *Horizon
}

func (Page1Patch) Page() Page { return Page1 }
func (Page1Patch) sealed()    {}

// Page2Patch carries node operations and anchor changes.
type Page2Patch struct {
	MassFilter  *float64
	AnchorShift *[2]float64
	Ops         []NodeOp
}

func (Page2Patch) Page() Page { return Page2 }
func (Page2Patch) sealed()    {}

// Page3Patch replaces the mandala allocation. Allocations is normalized.
type Page3Patch struct {
	Allocations mandala.Allocation
}

func (Page3Patch) Page() Page { return Page3 }
func (Page3Patch) sealed()    {}

// NodeOp is one node operation. Mass and Position are present only where
// the operation type uses them.
type NodeOp struct {
	Type        OpType      `json:"type"`
	OpID        string      `json:"op_id"`
	TimestampMs int64       `json:"timestamp_ms"`
	NodeID      string      `json:"node_id"`
	Mass        *float64    `json:"mass,omitempty"`
	Position    *[2]float64 `json:"position,omitempty"`
}

// Value bounds applied by the validators.
const (
	MassModifierMin = -0.5
	MassModifierMax = 0.5
	MassFilterMin   = 0.0
	MassFilterMax   = 1.0
	AnchorShiftMin  = -1.0
	AnchorShiftMax  = 1.0
	NodeMassMin     = 0.0
	NodeMassMax     = 1.0
	PositionMin     = -1.0
	PositionMax     = 1.0

	// DefaultNodeMass is the mass of a node created without one.
	DefaultNodeMass = 0.5
)
