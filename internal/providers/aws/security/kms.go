package awssecurity

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	kmssvc "github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/rs/zerolog"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// ErrKeyNotUsable is returned by DescribeKMSKey for keys that exist but cannot
// encrypt queues.
var ErrKeyNotUsable = errors.New("kms key not usable for encryption")

// listKMSKeys returns every enabled symmetric encryption key in region. Keys
// that cannot be described are logged and skipped.
func listKMSKeys(ctx context.Context, client kmsAPIClient, region string, log zerolog.Logger) ([]models.KMSKey, error) {
	var keys []models.KMSKey
	p := kmssvc.NewListKeysPaginator(client, &kmssvc.ListKeysInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list KMS keys in %s: %w", region, err)
		}
		for _, k := range page.Keys {
			meta, err := describeKey(ctx, client, aws.ToString(k.KeyId))
			if err != nil {
				log.Debug().Err(err).Str("key_id", aws.ToString(k.KeyId)).Msg("skipping KMS key")
				continue
			}
			if !usableForEncryption(meta) {
				continue
			}
			keys = append(keys, toKMSKey(meta, region))
		}
	}
	return keys, nil
}

// verifyKMSKey resolves keyID and fails unless it names an enabled
// encryption key.
func verifyKMSKey(ctx context.Context, client kmsAPIClient, keyID, region string) (models.KMSKey, error) {
	meta, err := describeKey(ctx, client, keyID)
	if err != nil {
		if apiErrorCode(err) == codeKMSNotFound {
			return models.KMSKey{}, fmt.Errorf("kms key %q not found in %s: %w", keyID, region, err)
		}
		return models.KMSKey{}, err
	}
	if !usableForEncryption(meta) {
		return models.KMSKey{}, fmt.Errorf("%w: %q is %s/%s", ErrKeyNotUsable, keyID, meta.KeyState, meta.KeyUsage)
	}
	return toKMSKey(meta, region), nil
}

func describeKey(ctx context.Context, client kmsAPIClient, keyID string) (*kmstypes.KeyMetadata, error) {
	out, err := client.DescribeKey(ctx, &kmssvc.DescribeKeyInput{KeyId: aws.String(keyID)})
	if err != nil {
		return nil, fmt.Errorf("describe KMS key %q: %w", keyID, err)
	}
	if out.KeyMetadata == nil {
		return nil, fmt.Errorf("describe KMS key %q: empty metadata", keyID)
	}
	return out.KeyMetadata, nil
}

func usableForEncryption(meta *kmstypes.KeyMetadata) bool {
	return meta.KeyState == kmstypes.KeyStateEnabled && meta.KeyUsage == kmstypes.KeyUsageTypeEncryptDecrypt
}

func toKMSKey(meta *kmstypes.KeyMetadata, region string) models.KMSKey {
	return models.KMSKey{
		KeyID:       aws.ToString(meta.KeyId),
		ARN:         aws.ToString(meta.Arn),
		Description: aws.ToString(meta.Description),
		KeyUsage:    string(meta.KeyUsage),
		KeyManager:  string(meta.KeyManager),
		Region:      region,
	}
}
