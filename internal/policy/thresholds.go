package policy

import "github.com/pankaj-dahiya-devops/secops-audit/internal/exposure"

// GetThreshold returns the configured float64 parameter value for a rule, or
// defaultValue when no override is present. It is safe to call with cfg == nil.
func GetThreshold(ruleID, key string, defaultValue float64, cfg *PolicyConfig) float64 {
	if cfg == nil {
		return defaultValue
	}
	rc, ok := cfg.Rules[ruleID]
	if !ok {
		return defaultValue
	}
	v, ok := rc.Params[key]
	if !ok {
		return defaultValue
	}
	return v
}

// ScorerFromPolicy returns the default scorer with the policy's weights and
// thresholds blocks substituted where present. The result is not validated.
func ScorerFromPolicy(cfg *PolicyConfig) exposure.Scorer {
	s := exposure.DefaultScorer()
	if cfg == nil {
		return s
	}
	if cfg.Scoring.Weights != nil {
		s.Weights = *cfg.Scoring.Weights
	}
	if cfg.Scoring.Thresholds != nil {
		s.Thresholds = *cfg.Scoring.Thresholds
	}
	return s
}

// WatchedPorts returns network.watched_ports as a PortSet, or the default
// SSH/RDP set when none are configured.
func WatchedPorts(cfg *PolicyConfig) exposure.PortSet {
	if cfg == nil || len(cfg.Network.WatchedPorts) == 0 {
		return exposure.DefaultWatchedPorts()
	}
	return exposure.NewPortSet(cfg.Network.WatchedPorts...)
}
