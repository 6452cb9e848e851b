package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// Registry holds the rules of one audit domain in registration order.
type Registry struct {
	rules []Rule
	byID  map[string]int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: map[string]int{}}
}

// NewRegistryFrom registers every rule of every pack, in order.
func NewRegistryFrom(packs ...[]Rule) *Registry {
	reg := NewRegistry()
	for _, pack := range packs {
		for _, r := range pack {
			reg.Register(r)
		}
	}
	return reg
}

// Register panics on a duplicate ID; packs are wired at startup, so a
// duplicate is a programming error.
func (r *Registry) Register(rule Rule) {
	id := rule.ID()
	if _, dup := r.byID[id]; dup {
		panic(fmt.Sprintf("rules: %q registered twice", id))
	}
	r.byID[id] = len(r.rules)
	r.rules = append(r.rules, rule)
}

// Lookup returns the rule registered under id.
func (r *Registry) Lookup(id string) (Rule, bool) {
	i, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return r.rules[i], true
}

func (r *Registry) IDs() []string {
	ids := make([]string, len(r.rules))
	for i, rule := range r.rules {
		ids[i] = rule.ID()
	}
	return ids
}

// EvaluateAll concatenates the findings of every rule, in registration order.
func (r *Registry) EvaluateAll(ctx RuleContext) []models.Finding {
	var out []models.Finding
	for _, rule := range r.rules {
		out = append(out, rule.Evaluate(ctx)...)
	}
	return out
}
