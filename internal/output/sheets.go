package output

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// DefaultSheetRange is the A1 range searched for the table to append to.
const DefaultSheetRange = "Sheet1!A1"

// ValuesAppender appends rows to a spreadsheet range.
type ValuesAppender interface {
	Append(ctx context.Context, spreadsheetID, rangeA1 string, rows [][]any) error
}

// SheetsAppender is the sheets/v4 implementation of ValuesAppender.
type SheetsAppender struct {
	svc *sheets.Service
}

// NewSheetsAppender builds a Sheets client from a service-account
// credentials file. The service account needs Editor access to the sheet.
func NewSheetsAppender(ctx context.Context, credentialsFile string) (*SheetsAppender, error) {
	if credentialsFile == "" {
		return nil, errors.New("google credentials file is required")
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsAppender{svc: svc}, nil
}

// Append inserts rows after the last row of the table found in rangeA1.
// Values are parsed as if typed by a user.
func (a *SheetsAppender) Append(ctx context.Context, spreadsheetID, rangeA1 string, rows [][]any) error {
	vr := &sheets.ValueRange{MajorDimension: "ROWS", Values: rows}
	_, err := a.svc.Spreadsheets.Values.Append(spreadsheetID, rangeA1, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append %d rows to %s: %w", len(rows), spreadsheetID, err)
	}
	return nil
}

// PushPublicBuckets appends one row per public bucket to the sheet,
// preceded by a header row when withHeader is set. It returns the number of
// bucket rows written; zero public buckets writes nothing.
func PushPublicBuckets(ctx context.Context, a ValuesAppender, spreadsheetID, rangeA1 string, rows [][]any, withHeader bool) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if rangeA1 == "" {
		rangeA1 = DefaultSheetRange
	}
	payload := rows
	if withHeader {
		payload = append([][]any{BucketRowHeader}, rows...)
	}
	if err := a.Append(ctx, spreadsheetID, rangeA1, payload); err != nil {
		return 0, err
	}
	return len(rows), nil
}
