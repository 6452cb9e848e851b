package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// SerializeMode selects how a bucket verdict is flattened into a row.
type SerializeMode string

const (
	// SerializeRaw emits the whole verdict as one JSON cell.
	SerializeRaw SerializeMode = "RAW"
	// SerializeNormalized emits one column per field:
	// name, publicByACL, publicByPolicy, owner, grants JSON.
	SerializeNormalized SerializeMode = "NORMALIZED"
)

// BucketRowHeader is the header row matching SerializeNormalized.
var BucketRowHeader = []any{"Name", "PublicACL", "PublicPolicy", "Owner", "Grants"}

// ParseSerializeMode accepts RAW or NORMALIZED in any case.
func ParseSerializeMode(s string) (SerializeMode, error) {
	switch SerializeMode(strings.ToUpper(s)) {
	case SerializeRaw:
		return SerializeRaw, nil
	case SerializeNormalized, "":
		return SerializeNormalized, nil
	default:
		return "", fmt.Errorf("unknown serialize mode %q: want RAW or NORMALIZED", s)
	}
}

// SerializeBucket flattens a bucket verdict into a spreadsheet row.
func SerializeBucket(v models.ExposureVerdict, mode SerializeMode) ([]any, error) {
	switch mode {
	case SerializeRaw:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal verdict %s: %w", v.ResourceName, err)
		}
		return []any{string(raw)}, nil
	case SerializeNormalized:
		grants := v.Grants
		if grants == nil {
			grants = []models.AccessGrant{}
		}
		raw, err := json.Marshal(grants)
		if err != nil {
			return nil, fmt.Errorf("marshal grants for %s: %w", v.ResourceName, err)
		}
		return []any{v.ResourceName, v.PublicByACL, string(v.PublicByPolicy), v.Owner, string(raw)}, nil
	default:
		return nil, fmt.Errorf("unknown serialize mode %q", mode)
	}
}

// PublicBucketRows returns one row per public bucket, in report order.
// A bucket is public when its ACL grants a public group or its policy
// status reports it public.
func PublicBucketRows(verdicts []models.ExposureVerdict, mode SerializeMode) ([][]any, error) {
	var rows [][]any
	for _, v := range verdicts {
		if v.ResourceType != models.ResourceS3Bucket {
			continue
		}
		if !v.PublicByACL && v.PublicByPolicy != models.PolicyPublic {
			continue
		}
		row, err := SerializeBucket(v, mode)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
