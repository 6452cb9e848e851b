package exposure

import "github.com/pankaj-dahiya-devops/secops-audit/internal/models"

// Aggregate folds verdicts into account-wide counts. Every count is a sum of
// per-verdict contributions, so the result is independent of input order.
func Aggregate(verdicts []models.ExposureVerdict) models.ExposureSummary {
	var s models.ExposureSummary
	for _, v := range verdicts {
		s = Merge(s, single(v))
	}
	return s
}

// Merge adds two summaries field by field.
func Merge(a, b models.ExposureSummary) models.ExposureSummary {
	return models.ExposureSummary{
		Total:           a.Total + b.Total,
		Critical:        a.Critical + b.Critical,
		High:            a.High + b.High,
		Medium:          a.Medium + b.Medium,
		Low:             a.Low + b.Low,
		WithIssues:      a.WithIssues + b.WithIssues,
		AnonymousAccess: a.AnonymousAccess + b.AnonymousAccess,
		PublicAction:    a.PublicAction + b.PublicAction,
		BlankPolicy:     a.BlankPolicy + b.BlankPolicy,
		Restrictive:     a.Restrictive + b.Restrictive,
		PublicByACL:     a.PublicByACL + b.PublicByACL,
		PublicByPolicy:  a.PublicByPolicy + b.PublicByPolicy,
		Unencrypted:     a.Unencrypted + b.Unencrypted,
		KMSEncrypted:    a.KMSEncrypted + b.KMSEncrypted,
		SSEEncrypted:    a.SSEEncrypted + b.SSEEncrypted,
	}
}

func single(v models.ExposureVerdict) models.ExposureSummary {
	s := models.ExposureSummary{Total: 1}
	switch v.RiskLevel {
	case models.RiskCritical:
		s.Critical = 1
	case models.RiskHigh:
		s.High = 1
	case models.RiskMedium:
		s.Medium = 1
	default:
		s.Low = 1
	}
	if v.AnonymousAccess || len(v.PolicyIssues) > 0 {
		s.WithIssues = 1
	}
	if v.AnonymousAccess {
		s.AnonymousAccess = 1
	}
	if v.PublicAction {
		s.PublicAction = 1
	}
	if v.BlankPolicy {
		s.BlankPolicy = 1
	}
	// Restrictive: an attached, readable policy that grants nothing publicly.
	if v.PolicyState == models.PolicyAttached && !v.AnonymousAccess && !v.BlankPolicy && len(v.PolicyIssues) == 0 {
		s.Restrictive = 1
	}
	if v.PublicByACL {
		s.PublicByACL = 1
	}
	if v.PublicByPolicy == models.PolicyPublic {
		s.PublicByPolicy = 1
	}
	switch v.Encryption.Type() {
	case "KMS":
		s.KMSEncrypted = 1
	case "SSE":
		s.SSEEncrypted = 1
	default:
		s.Unencrypted = 1
	}
	return s
}
