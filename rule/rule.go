// Package rule defines the stored rule record and the codec between a
// variable-length policy tuple and the fixed-width document shape used by
// the backing store. The six-field arity bound is enforced here and nowhere
// else.
package rule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxFields is the number of value slots in a stored rule record.
const MaxFields = 6

// ErrTooManyFields is returned when a policy tuple exceeds MaxFields values.
var ErrTooManyFields = errors.New("rule: too many fields")

// Rule is one persisted policy rule: a policy type plus six ordered value
// slots. Slots beyond the tuple's natural length hold empty strings. Two
// rules are identical iff all seven fields are equal, so the comparable
// value type doubles as the de-duplication key.
type Rule struct {
	PType string `bson:"ptype"`
	V0    string `bson:"v0"`
	V1    string `bson:"v1"`
	V2    string `bson:"v2"`
	V3    string `bson:"v3"`
	V4    string `bson:"v4"`
	V5    string `bson:"v5"`
}

// New builds a Rule from a policy type and tuple, right-padding unused
// slots with empty strings. It fails with ErrTooManyFields when the tuple
// has more than MaxFields values.
func New(ptype string, fields []string) (Rule, error) {
	if len(fields) > MaxFields {
		return Rule{}, fmt.Errorf("%w: got %d, max %d", ErrTooManyFields, len(fields), MaxFields)
	}
	r := Rule{PType: ptype}
	for i, v := range fields {
		r.setSlot(i, v)
	}
	return r, nil
}

// Fields returns the value slots in order with trailing empty slots
// trimmed, so that New(ptype, t).Fields() reconstructs t. Interior blanks
// are preserved.
func (r Rule) Fields() []string {
	all := []string{r.V0, r.V1, r.V2, r.V3, r.V4, r.V5}
	end := len(all)
	for end > 0 && all[end-1] == "" {
		end--
	}
	return all[:end]
}

func (r *Rule) setSlot(i int, v string) {
	switch i {
	case 0:
		r.V0 = v
	case 1:
		r.V1 = v
	case 2:
		r.V2 = v
	case 3:
		r.V3 = v
	case 4:
		r.V4 = v
	case 5:
		r.V5 = v
	}
}

func (r Rule) slot(i int) string {
	switch i {
	case 0:
		return r.V0
	case 1:
		return r.V1
	case 2:
		return r.V2
	case 3:
		return r.V3
	case 4:
		return r.V4
	case 5:
		return r.V5
	}
	return ""
}

// FieldName returns the stored field name for value slot i ("v0".."v5").
func FieldName(i int) string {
	return "v" + strconv.Itoa(i)
}

// Filter is an equality conjunction over stored field names ("ptype",
// "v0".."v5"). Fields absent from the filter match any value.
type Filter map[string]string

// Match builds a filter that requires ptype equality plus an equality
// constraint for every non-blank field value, offset by fieldIndex into
// the slot numbering. Blank values act as wildcards.
func Match(ptype string, fieldIndex int, fieldValues []string) Filter {
	f := Filter{"ptype": ptype}
	for i, v := range fieldValues {
		if strings.TrimSpace(v) != "" {
			f[FieldName(fieldIndex+i)] = v
		}
	}
	return f
}

// ExactFilter returns a filter constraining all seven fields, empty slots
// included, so it selects only records identical to r.
func (r Rule) ExactFilter() Filter {
	f := Filter{"ptype": r.PType}
	for i := 0; i < MaxFields; i++ {
		f[FieldName(i)] = r.slot(i)
	}
	return f
}

// Matches reports whether r satisfies every constraint in f.
func (f Filter) Matches(r Rule) bool {
	for name, want := range f {
		if name == "ptype" {
			if r.PType != want {
				return false
			}
			continue
		}
		i, err := strconv.Atoi(strings.TrimPrefix(name, "v"))
		if err != nil || i < 0 || i >= MaxFields {
			return false
		}
		if r.slot(i) != want {
			return false
		}
	}
	return true
}
