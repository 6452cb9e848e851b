package exposure

import (
	"errors"
	"fmt"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// Weights are the additive score contributions of each risk factor.
type Weights struct {
	Anonymous    int `yaml:"anonymous"     json:"anonymous"`
	PublicAction int `yaml:"public_action" json:"public_action"`
	Unencrypted  int `yaml:"unencrypted"   json:"unencrypted"`
	Blank        int `yaml:"blank"         json:"blank"`
}

// Thresholds are inclusive lower bounds of each risk band. A score below
// Medium is Low.
type Thresholds struct {
	Critical int `yaml:"critical" json:"critical"`
	High     int `yaml:"high"     json:"high"`
	Medium   int `yaml:"medium"   json:"medium"`
}

// Scorer turns risk facts into a score, a level and recommendations.
// The zero value is not usable; start from DefaultScorer.
type Scorer struct {
	Weights    Weights
	Thresholds Thresholds
}

// DefaultScorer returns the 5/4/3/1 weights with bands at 5, 3 and 1.
func DefaultScorer() Scorer {
	return Scorer{
		Weights:    Weights{Anonymous: 5, PublicAction: 4, Unencrypted: 3, Blank: 1},
		Thresholds: Thresholds{Critical: 5, High: 3, Medium: 1},
	}
}

// Validate rejects tables that would break monotonicity or rate a
// spotless resource above Low.
func (s Scorer) Validate() error {
	var errs []error
	weights := []struct {
		name  string
		value int
	}{
		{"anonymous", s.Weights.Anonymous},
		{"public_action", s.Weights.PublicAction},
		{"unencrypted", s.Weights.Unencrypted},
		{"blank", s.Weights.Blank},
	}
	for _, w := range weights {
		if w.value < 0 {
			errs = append(errs, fmt.Errorf("weights.%s: must not be negative, got %d", w.name, w.value))
		}
	}
	t := s.Thresholds
	if t.Medium < 1 {
		errs = append(errs, fmt.Errorf("thresholds.medium: must be at least 1, got %d", t.Medium))
	}
	if t.High < t.Medium {
		errs = append(errs, fmt.Errorf("thresholds.high (%d) must not be below thresholds.medium (%d)", t.High, t.Medium))
	}
	if t.Critical < t.High {
		errs = append(errs, fmt.Errorf("thresholds.critical (%d) must not be below thresholds.high (%d)", t.Critical, t.High))
	}
	return errors.Join(errs...)
}

// RiskFacts are the inputs of the scoring table.
type RiskFacts struct {
	AnonymousAccess bool
	PublicAction    bool
	BlankPolicy     bool
	Encryption      models.EncryptionState
}

// Assessment is the scorer's output for one set of facts.
type Assessment struct {
	Score           int
	Level           models.RiskLevel
	RiskFactors     []string
	Recommendations []string
}

// Score totals the weights of the facts that are present.
func (s Scorer) Score(f RiskFacts) int {
	score := 0
	if f.AnonymousAccess {
		score += s.Weights.Anonymous
	}
	if f.PublicAction {
		score += s.Weights.PublicAction
	}
	if !f.Encryption.Enabled {
		score += s.Weights.Unencrypted
	}
	if f.BlankPolicy {
		score += s.Weights.Blank
	}
	return score
}

// Level maps a score onto its band; ties go to the higher band.
func (s Scorer) Level(score int) models.RiskLevel {
	switch {
	case score >= s.Thresholds.Critical:
		return models.RiskCritical
	case score >= s.Thresholds.High:
		return models.RiskHigh
	case score >= s.Thresholds.Medium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// Assess scores f and lists risk factors and recommendations in a fixed
// order: anonymous access, public action, blank policy, encryption.
func (s Scorer) Assess(f RiskFacts) Assessment {
	score := s.Score(f)
	a := Assessment{
		Score:           score,
		Level:           s.Level(score),
		RiskFactors:     []string{},
		Recommendations: []string{},
	}
	if f.AnonymousAccess {
		a.RiskFactors = append(a.RiskFactors, "Anonymous access enabled")
		a.Recommendations = append(a.Recommendations, "Remove anonymous access immediately")
	}
	if f.PublicAction {
		a.RiskFactors = append(a.RiskFactors, "Public access enabled")
		a.Recommendations = append(a.Recommendations, "Restrict public access")
	}
	if f.BlankPolicy {
		a.RiskFactors = append(a.RiskFactors, "Blank policy - depends on IAM")
		a.Recommendations = append(a.Recommendations,
			"Blank policy: security depends on the IAM permissions of accessing principals",
			"Consider adding an explicit resource policy for better control",
		)
	}
	switch f.Encryption.Type() {
	case "KMS":
		a.Recommendations = append(a.Recommendations, "KMS encryption enabled")
	case "SSE":
		a.Recommendations = append(a.Recommendations,
			"Service-managed SSE enabled",
			"Consider upgrading to KMS encryption for better key management",
		)
	default:
		a.RiskFactors = append(a.RiskFactors, "No encryption enabled")
		a.Recommendations = append(a.Recommendations,
			"Enable server-side encryption immediately",
			"Consider KMS encryption for sensitive data",
		)
	}
	return a
}

// Facts derives the policy-driven risk facts from a parsed document.
func Facts(doc PolicyDocument, enc models.EncryptionState) RiskFacts {
	return RiskFacts{
		AnonymousAccess: hasWildcardPrincipal(doc.Statements),
		PublicAction:    hasPublicAction(doc.Statements),
		BlankPolicy:     doc.Blank,
		Encryption:      enc,
	}
}

func hasWildcardPrincipal(stmts []models.PolicyStatement) bool {
	for _, st := range stmts {
		if st.WildcardPrincipal {
			return true
		}
	}
	return false
}

func hasPublicAction(stmts []models.PolicyStatement) bool {
	for _, st := range stmts {
		if st.Effect != models.EffectAllow {
			continue
		}
		for _, a := range st.Actions {
			if isWildcardAction(a) {
				return true
			}
		}
	}
	return false
}

// isWildcardAction matches "*" and service-level wildcards such as "sqs:*".
func isWildcardAction(action string) bool {
	if action == "*" {
		return true
	}
	n := len(action)
	return n > 2 && action[n-2:] == ":*"
}
