package policy

import (
	"strings"
	"testing"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/exposure"
)

var testRuleIDs = []string{"S3_PUBLIC_ACCESS", "SQS_UNENCRYPTED", "SG_OPEN_REMOTE_ACCESS"}

func errorsContain(errs []error, substr string) bool {
	for _, err := range errs {
		if strings.Contains(err.Error(), substr) {
			return true
		}
	}
	return false
}

func TestValidate_ValidMinimalConfig(t *testing.T) {
	if errs := Validate(&PolicyConfig{Version: 1}, testRuleIDs); len(errs) != 0 {
		t.Errorf("want no errors, got %v", errs)
	}
}

func TestValidate_ValidFullConfig(t *testing.T) {
	cfg := &PolicyConfig{
		Version: 1,
		Domains: map[string]DomainConfig{
			"s3":      {Enabled: true, MinSeverity: "low"},
			"network": {Enabled: true},
			"sqs":     {Enabled: false},
		},
		Rules: map[string]RuleConfig{
			"SQS_UNENCRYPTED": {Enabled: boolPtr(true), Severity: "Critical"},
		},
		Enforcement: map[string]EnforcementConfig{
			"network": {FailOnSeverity: "HIGH"},
		},
		Scoring: ScoringConfig{
			Weights:    &exposure.Weights{Anonymous: 10, PublicAction: 5, Unencrypted: 3, Blank: 0},
			Thresholds: &exposure.Thresholds{Critical: 10, High: 5, Medium: 2},
		},
		Network: NetworkConfig{WatchedPorts: []int{22, 3389, 5985}},
	}
	if errs := Validate(cfg, testRuleIDs); len(errs) != 0 {
		t.Errorf("want no errors, got %v", errs)
	}
}

func TestValidate_InvalidVersion(t *testing.T) {
	errs := Validate(&PolicyConfig{Version: 0}, testRuleIDs)
	if !errorsContain(errs, "version") {
		t.Errorf("want version error, got %v", errs)
	}
}

func TestValidate_UnknownDomain(t *testing.T) {
	cfg := &PolicyConfig{Version: 1, Domains: map[string]DomainConfig{"cost": {Enabled: true}}}
	if errs := Validate(cfg, testRuleIDs); !errorsContain(errs, "domains.cost") {
		t.Errorf("want unknown domain error, got %v", errs)
	}
}

func TestValidate_UnknownRule(t *testing.T) {
	cfg := &PolicyConfig{Version: 1, Rules: map[string]RuleConfig{"EC2_LOW_CPU": {}}}
	if errs := Validate(cfg, testRuleIDs); !errorsContain(errs, "rules.EC2_LOW_CPU: unknown rule ID") {
		t.Errorf("want unknown rule error, got %v", errs)
	}
}

func TestValidate_InvalidSeverities(t *testing.T) {
	cfg := &PolicyConfig{
		Version:     1,
		Domains:     map[string]DomainConfig{"s3": {Enabled: true, MinSeverity: "SEVERE"}},
		Rules:       map[string]RuleConfig{"S3_PUBLIC_ACCESS": {Severity: "URGENT"}},
		Enforcement: map[string]EnforcementConfig{"sqs": {FailOnSeverity: "NOPE"}},
	}
	errs := Validate(cfg, testRuleIDs)
	for _, want := range []string{"domains.s3.min_severity", "rules.S3_PUBLIC_ACCESS.severity", "enforcement.sqs.fail_on_severity"} {
		if !errorsContain(errs, want) {
			t.Errorf("missing %q in %v", want, errs)
		}
	}
}

func TestValidate_UnknownEnforcementDomain(t *testing.T) {
	cfg := &PolicyConfig{Version: 1, Enforcement: map[string]EnforcementConfig{"k8s": {FailOnSeverity: "HIGH"}}}
	if errs := Validate(cfg, testRuleIDs); !errorsContain(errs, "enforcement.k8s") {
		t.Errorf("want enforcement domain error, got %v", errs)
	}
}

func TestValidate_BadScoringTable(t *testing.T) {
	cfg := &PolicyConfig{Version: 1, Scoring: ScoringConfig{
		Thresholds: &exposure.Thresholds{Critical: 2, High: 4, Medium: 1},
	}}
	if errs := Validate(cfg, testRuleIDs); !errorsContain(errs, "scoring:") {
		t.Errorf("want scoring error, got %v", errs)
	}
}

func TestValidate_PortOutOfRange(t *testing.T) {
	cfg := &PolicyConfig{Version: 1, Network: NetworkConfig{WatchedPorts: []int{22, 70000}}}
	if errs := Validate(cfg, testRuleIDs); !errorsContain(errs, "network.watched_ports[1]") {
		t.Errorf("want port range error, got %v", errs)
	}
}

func TestValidate_MultipleErrorsAggregated(t *testing.T) {
	cfg := &PolicyConfig{
		Version: 3,
		Domains: map[string]DomainConfig{"cost": {}},
		Rules:   map[string]RuleConfig{"NOPE": {}},
	}
	if errs := Validate(cfg, testRuleIDs); len(errs) < 3 {
		t.Errorf("want at least 3 errors, got %d: %v", len(errs), errs)
	}
}

func TestValidate_NilConfig(t *testing.T) {
	if errs := Validate(nil, testRuleIDs); len(errs) != 1 {
		t.Errorf("want exactly 1 error for nil config, got %v", errs)
	}
}
