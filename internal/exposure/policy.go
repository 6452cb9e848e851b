package exposure

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// PolicyDocument is the parsed form of a resource policy.
// Blank is set when no policy is attached or the attached one carries no
// statements. A malformed document is not blank; it has an IssueInvalidJSON
// entry in Issues and no statements.
type PolicyDocument struct {
	Statements []models.PolicyStatement
	Blank      bool
	Issues     []string
}

type rawPolicy struct {
	Statement json.RawMessage `json:"Statement"`
}

type rawStatement struct {
	Effect    string          `json:"Effect"`
	Principal json.RawMessage `json:"Principal"`
	Action    json.RawMessage `json:"Action"`
	Resource  json.RawMessage `json:"Resource"`
}

// ParsePolicy normalizes a policy document into statements. It never fails:
// unreadable input is reported through PolicyDocument.Issues.
func ParsePolicy(in models.PolicyInput) PolicyDocument {
	switch in.State {
	case models.PolicyUnavailable:
		return PolicyDocument{Issues: []string{IssuePolicyUnavailable}}
	case models.PolicyNotAttached:
		return PolicyDocument{Blank: true}
	}

	raw := strings.TrimSpace(in.Raw)
	if raw == "" || raw == "{}" {
		return PolicyDocument{Blank: true}
	}

	var doc rawPolicy
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return PolicyDocument{Issues: []string{IssueInvalidJSON}}
	}

	stmts, ok := decodeStatements(doc.Statement)
	if !ok {
		return PolicyDocument{Issues: []string{IssueInvalidJSON}}
	}
	if len(stmts) == 0 {
		return PolicyDocument{Blank: true}
	}

	out := PolicyDocument{Statements: make([]models.PolicyStatement, 0, len(stmts))}
	for _, s := range stmts {
		wildcard, principals := decodePrincipal(s.Principal)
		out.Statements = append(out.Statements, models.PolicyStatement{
			Effect:            normalizeEffect(s.Effect),
			WildcardPrincipal: wildcard,
			Principals:        principals,
			Actions:           stringOrList(s.Action),
			Resources:         stringOrList(s.Resource),
		})
	}
	return out
}

// decodeStatements accepts both a single statement object and an array.
// A missing Statement member yields zero statements.
func decodeStatements(raw json.RawMessage) ([]rawStatement, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, true
	}
	if strings.HasPrefix(trimmed, "{") {
		var one rawStatement
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, false
		}
		return []rawStatement{one}, true
	}
	var many []rawStatement
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, false
	}
	return many, true
}

func normalizeEffect(effect string) models.Effect {
	if strings.EqualFold(effect, string(models.EffectAllow)) {
		return models.EffectAllow
	}
	return models.EffectDeny
}

// decodePrincipal handles "*", {"AWS": "*"}, {"AWS": ["*", ...]} and the
// other principal kinds (Service, Federated, CanonicalUser).
func decodePrincipal(raw json.RawMessage) (bool, []string) {
	if len(raw) == 0 {
		return false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "*" {
			return true, nil
		}
		return false, []string{s}
	}

	var byKind map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byKind); err != nil {
		return false, nil
	}
	var (
		wildcard bool
		ids      []string
	)
	for kind, v := range byKind {
		for _, id := range stringOrList(v) {
			if id == "*" && kind == "AWS" {
				wildcard = true
				continue
			}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return wildcard, ids
}

func stringOrList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []string{s}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	return nil
}
