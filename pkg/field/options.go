package field

import "encoding/json"

// Choice is one selectable entry as declared by the caller.
type Choice struct {
	Value   any
	Label   string
	Group   string
	grouped bool
}

// Label declares a plain choice.
func Label(value any, label string) Choice {
	return Choice{Value: value, Label: label}
}

// Grouped declares a choice that belongs to group. A single grouped choice
// switches the whole option list into grouped form.
func Grouped(value any, label, group string) Choice {
	return Choice{Value: value, Label: label, Group: group, grouped: true}
}

// IsGrouped reports whether the choice was declared with a group.
func (c Choice) IsGrouped() bool { return c.grouped }

// Option is the normalized {label, value} pair sent to the UI.
type Option struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// OptionGroup is a named bucket of options.
type OptionGroup struct {
	Label  string   `json:"label"`
	Values []Option `json:"values"`
}

// Options holds the normalized option list, either flat or grouped.
type Options struct {
	flat   []Option
	groups []OptionGroup
}

// NormalizeOptions turns declared choices into a flat list, or into groups
// in order of first appearance when any choice carries a group. Ungrouped
// entries in a grouped list land in the group with the empty label.
func NormalizeOptions(choices []Choice) Options {
	grouped := false
	for _, c := range choices {
		if c.grouped {
			grouped = true
			break
		}
	}

	if !grouped {
		flat := make([]Option, 0, len(choices))
		for _, c := range choices {
			flat = append(flat, Option{Label: c.Label, Value: c.Value})
		}
		return Options{flat: flat}
	}

	index := make(map[string]int)
	var groups []OptionGroup
	for _, c := range choices {
		i, ok := index[c.Group]
		if !ok {
			i = len(groups)
			index[c.Group] = i
			groups = append(groups, OptionGroup{Label: c.Group})
		}
		groups[i].Values = append(groups[i].Values, Option{Label: c.Label, Value: c.Value})
	}
	return Options{groups: groups}
}

// IsGrouped reports whether the list is in grouped form.
func (o Options) IsGrouped() bool { return o.groups != nil }

// Flat returns a copy of the flat list. It is empty for grouped options.
func (o Options) Flat() []Option {
	return append([]Option{}, o.flat...)
}

// Groups returns a copy of the groups. It is empty for flat options.
func (o Options) Groups() []OptionGroup {
	out := make([]OptionGroup, len(o.groups))
	for i, g := range o.groups {
		out[i] = OptionGroup{Label: g.Label, Values: append([]Option{}, g.Values...)}
	}
	return out
}

// Len counts every option, across groups.
func (o Options) Len() int {
	if !o.IsGrouped() {
		return len(o.flat)
	}
	n := 0
	for _, g := range o.groups {
		n += len(g.Values)
	}
	return n
}

func (o Options) MarshalJSON() ([]byte, error) {
	if o.IsGrouped() {
		return json.Marshal(o.groups)
	}
	return json.Marshal(o.Flat())
}
