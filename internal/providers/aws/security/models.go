// Package awssecurity implements the AWS exposure data collector and the
// remediator that applies security-group and queue-encryption fixes.
//
// The collector only fetches and normalizes descriptors (internal/models);
// verdicts are computed by internal/exposure.
package awssecurity

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// globalRegion is the canonical region for S3 bucket listing.
const globalRegion = "us-east-1"

// Service error codes the collector treats specially.
const (
	codeNoSuchBucketPolicy = "NoSuchBucketPolicy"
	codeNoEncryptionConfig = "ServerSideEncryptionConfigurationNotFoundError"
	codeNonExistentQueue   = "AWS.SimpleQueueService.NonExistentQueue"
	codeQueueDoesNotExist  = "QueueDoesNotExist"
	codeKMSNotFound        = "NotFoundException"
)

// apiErrorCode returns the service error code carried by err, or "".
func apiErrorCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}

// RegionFromQueueURL extracts the region from a queue URL such as
// https://sqs.eu-west-1.amazonaws.com/111122223333/orders. It returns "" when
// the host does not follow that shape.
func RegionFromQueueURL(url string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")
	if i := strings.Index(host, "/"); i >= 0 {
		host = host[:i]
	}
	parts := strings.Split(host, ".")
	if len(parts) < 3 || parts[0] != "sqs" {
		return ""
	}
	return parts[1]
}
