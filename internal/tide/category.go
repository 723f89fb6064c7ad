package tide

import "fmt"

// Threshold levels in centimetres above the Punta della Salute datum
const (
	SustainedThreshold     = 80.0
	VerySustainedThreshold = 110.0
	ExceptionalThreshold   = 140.0
)

// Category is the tide class a level falls into. The four values are
// mutually exclusive, so a level can never be both sustained and exceptional.
type Category int

const (
	Normal Category = iota
	Sustained
	VerySustained
	Exceptional
)

// Classify maps a level to its category. It is total: negative, NaN and
// absurd values all fall through to Normal.
func Classify(level float64) Category {
	switch {
	case level >= ExceptionalThreshold:
		return Exceptional
	case level >= VerySustainedThreshold:
		return VerySustained
	case level >= SustainedThreshold:
		return Sustained
	default:
		return Normal
	}
}

func (c Category) Sustained() bool     { return c == Sustained }
func (c Category) VerySustained() bool { return c == VerySustained }
func (c Category) Exceptional() bool   { return c == Exceptional }

// Flags is the boolean view of a category used on the wire
type Flags struct {
	Sustained     bool `json:"sustained"`
	VerySustained bool `json:"very_sustained"`
	Exceptional   bool `json:"exceptional"`
}

// Flags returns the category as three flags, at most one of which is set
func (c Category) Flags() Flags {
	return Flags{
		Sustained:     c.Sustained(),
		VerySustained: c.VerySustained(),
		Exceptional:   c.Exceptional(),
	}
}

func (c Category) String() string {
	switch c {
	case Normal:
		return "normal"
	case Sustained:
		return "sustained"
	case VerySustained:
		return "very_sustained"
	case Exceptional:
		return "exceptional"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	switch string(b) {
	case "normal":
		*c = Normal
	case "sustained":
		*c = Sustained
	case "very_sustained":
		*c = VerySustained
	case "exceptional":
		*c = Exceptional
	default:
		return fmt.Errorf("unknown tide category %q", string(b))
	}
	return nil
}
