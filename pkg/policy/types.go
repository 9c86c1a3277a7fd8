package policy

import (
	"encoding/json"
	"fmt"
)

// Effect is the outcome a policy prescribes when it applies.
type Effect string

const (
	// EffectAllow grants the matched request.
	EffectAllow Effect = "allow"
	// EffectDeny rejects the matched request.
	EffectDeny Effect = "deny"
)

// UnmarshalJSON decodes an effect and rejects values outside the enum.
// A JSON null leaves the effect unchanged, the same as an absent field.
func (e *Effect) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("effect must be a string: %w", err)
	}

	switch Effect(s) {
	case EffectAllow, EffectDeny:
		*e = Effect(s)
		return nil
	default:
		return fmt.Errorf("unknown effect %q, expected %q or %q", s, EffectAllow, EffectDeny)
	}
}

// Policy is a single access-control or business-rule record.
// Unknown JSON fields are ignored during decoding.
type Policy struct {
	// ID identifies the policy within a policy set.
	ID string `json:"id"`

	// Effect is the decision the policy produces when it matches.
	Effect Effect `json:"effect,omitempty"`

	// Description is free-form operator documentation.
	Description string `json:"description,omitempty"`

	// Subjects lists the principals the policy applies to.
	Subjects []string `json:"subjects,omitempty"`

	// Actions lists the operations the policy covers.
	Actions []string `json:"actions,omitempty"`

	// Resources lists the resource patterns the policy covers.
	Resources []string `json:"resources,omitempty"`

	// Conditions holds additional attribute constraints.
	Conditions map[string]string `json:"conditions,omitempty"`

	// Priority orders policies for evaluators that need a tie-breaker.
	Priority int `json:"priority,omitempty"`
}

// IDs returns the policy ids in order.
func IDs(policies []Policy) []string {
	ids := make([]string, len(policies))
	for i, p := range policies {
		ids[i] = p.ID
	}
	return ids
}

// Clone returns a copy of the slice that shares no backing arrays or maps
// with the input.
func Clone(policies []Policy) []Policy {
	if policies == nil {
		return nil
	}

	out := make([]Policy, len(policies))
	for i, p := range policies {
		out[i] = p
		out[i].Subjects = cloneStrings(p.Subjects)
		out[i].Actions = cloneStrings(p.Actions)
		out[i].Resources = cloneStrings(p.Resources)
		if p.Conditions != nil {
			out[i].Conditions = make(map[string]string, len(p.Conditions))
			for k, v := range p.Conditions {
				out[i].Conditions[k] = v
			}
		}
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
