// Package types provides type definitions for structured data used throughout the screening pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

// SkillTargets represents the weighted skills a job posting asks for
type SkillTargets struct {
	Skills []Skill `json:"skills"`
}

// Skill represents a single target skill with weight and source
type Skill struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Source string  `json:"source"`
}

// TotalWeight returns the sum of all skill weights
func (t *SkillTargets) TotalWeight() float64 {
	if t == nil {
		return 0
	}
	total := 0.0
	for _, s := range t.Skills {
		total += s.Weight
	}
	return total
}
