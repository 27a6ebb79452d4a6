package mongoadapter

import "github.com/polstore/mongoadapter/rule"

// Filter narrows a filtered policy load. It maps a policy type to the
// field-value patterns whose matches should be loaded; blank values act as
// wildcards, and a policy type with no patterns loads all of its rules.
//
//	mongoadapter.Filter{
//		"p": {{"", "data1"}}, // p rules whose second field is "data1"
//		"g": {},              // every g rule
//	}
type Filter map[string][][]string

func (f Filter) ruleFilters() []rule.Filter {
	var filters []rule.Filter
	for ptype, patterns := range f {
		if len(patterns) == 0 {
			filters = append(filters, rule.Filter{"ptype": ptype})
			continue
		}
		for _, pattern := range patterns {
			filters = append(filters, rule.Match(ptype, 0, pattern))
		}
	}
	return filters
}
