package rules

import (
	"github.com/pankaj-dahiya-devops/secops-audit/internal/exposure"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// evalQueue and evalBucket build verdicts through the real evaluator so rule
// tests exercise the same fields the engine produces.
func evalQueue(name, policy string, enc models.EncryptionState) models.ExposureVerdict {
	in := models.PolicyInput{State: models.PolicyNotAttached}
	if policy != "" {
		in = models.PolicyInput{Raw: policy, State: models.PolicyAttached}
	}
	v, err := exposure.NewEvaluator().EvaluateQueue(models.QueueDescriptor{
		URL:        "https://sqs.us-east-1.amazonaws.com/111122223333/" + name,
		Region:     "us-east-1",
		Policy:     in,
		Encryption: enc,
	})
	if err != nil {
		panic(err)
	}
	return v
}

func evalBucket(b models.BucketDescriptor) models.ExposureVerdict {
	v, err := exposure.NewEvaluator().EvaluateBucket(b)
	if err != nil {
		panic(err)
	}
	return v
}

var (
	unencrypted = models.NewEncryptionState(false, "")
	sse         = models.NewEncryptionState(true, "")
	kms         = models.NewEncryptionState(true, "arn:aws:kms:us-east-1:111122223333:key/abcd")

	wildcardPolicy = `{"Statement":[{"Effect":"Allow","Principal":"*","Action":"sqs:*"}]}`
	scopedPolicy   = `{"Statement":[{"Effect":"Allow","Principal":{"AWS":"arn:aws:iam::111122223333:root"},"Action":"sqs:SendMessage"}]}`
	allUsersGrant  = models.AccessGrant{GranteeType: models.GranteeGroup, GranteeIdentifier: exposure.AllUsersURI, Permission: "READ"}
)
