package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/config"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/providers/aws/common"
)

// DoctorResult is the structured output of secops doctor. It can be
// serialised to JSON via --format=json or rendered as a human-readable table
// (default).
type DoctorResult struct {
	AWS struct {
		Profile     string `json:"profile,omitempty"`
		Credentials bool   `json:"credentials_ok"`
		AccountID   string `json:"account_id,omitempty"`
		RegionsOK   bool   `json:"regions_ok"`
		Error       string `json:"error,omitempty"`
	} `json:"aws"`

	Policy struct {
		Path    string   `json:"path,omitempty"`
		Present bool     `json:"present"`
		Valid   bool     `json:"valid"`
		Errors  []string `json:"errors,omitempty"`
	} `json:"policy"`

	Sheets struct {
		Configured  bool   `json:"configured"`
		Credentials bool   `json:"credentials_ok"`
		Error       string `json:"error,omitempty"`
	} `json:"sheets"`

	OverallHealthy bool `json:"overall_healthy"`
}

// defaultPolicyFile is checked when neither --policy nor the config names a
// policy file.
const defaultPolicyFile = "./secops.yaml"

func newDoctorCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run environment diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			profile, _ := cmd.Flags().GetString("profile")
			policyPath, _ := cmd.Flags().GetString("policy")
			if policyPath == "" {
				policyPath = env.cfg.Report.PolicyFile
			}
			if policyPath == "" {
				policyPath = defaultPolicyFile
			}
			result, err := runDoctor(
				cmd.Context(),
				env.newProvider(env.log),
				env.cfg,
				env.stdout,
				format,
				env.profileOrDefault(profile),
				policyPath,
			)
			if err != nil {
				// Rendering failure.
				return err
			}
			if !result.OverallHealthy {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().String("format", "table", `Output format: "table" or "json"`)
	cmd.Flags().String("profile", "", "AWS profile to use (default: credential chain)")
	cmd.Flags().String("policy", "", "Policy file to validate (default: config report.policy_file or "+defaultPolicyFile+")")
	return cmd
}

// runDoctor collects all diagnostic results, renders them to w in the
// requested format, and returns the result.
// The returned error covers only rendering failures (e.g. JSON encode error).
// Callers must inspect result.OverallHealthy to determine whether the
// environment is healthy.
func runDoctor(ctx context.Context, awsProvider common.AWSClientProvider, cfg *config.Config, w io.Writer, format, profile, policyPath string) (DoctorResult, error) {
	result := collectDoctorResult(ctx, awsProvider, cfg, profile, policyPath)

	switch format {
	case "json":
		if err := json.NewEncoder(w).Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
	default:
		renderDoctorTable(result, w)
	}

	return result, nil
}

// collectDoctorResult runs all environment checks and populates a DoctorResult.
// It performs no rendering; callers decide how to present the result.
func collectDoctorResult(ctx context.Context, awsProvider common.AWSClientProvider, cfg *config.Config, profile, policyPath string) DoctorResult {
	var result DoctorResult

	// AWS: credentials → STS account ID → region discovery.
	// An empty profile string selects the default credential chain.
	result.AWS.Profile = profile
	profileCfg, err := awsProvider.LoadProfile(ctx, profile)
	if err != nil {
		result.AWS.Error = err.Error()
	} else {
		result.AWS.Credentials = true
		result.AWS.AccountID = profileCfg.AccountID
		if _, err = awsProvider.GetActiveRegions(ctx, profileCfg); err != nil {
			result.AWS.Error = err.Error()
		} else {
			result.AWS.RegionsOK = true
		}
	}

	// Policy: stat → load → validate (file is optional).
	result.Policy.Path = policyPath
	_, statErr := os.Stat(policyPath)
	if statErr == nil {
		result.Policy.Present = true
		if _, loadErr := loadPolicyFile(policyPath); loadErr != nil {
			result.Policy.Errors = []string{loadErr.Error()}
		} else {
			result.Policy.Valid = true
		}
	} else if !os.IsNotExist(statErr) {
		// Stat error other than "not found": treat as present but unreadable.
		result.Policy.Present = true
		result.Policy.Errors = []string{statErr.Error()}
	}

	// Sheets: only checked when an export target is configured.
	if cfg != nil && cfg.Sheets.SpreadsheetID != "" {
		result.Sheets.Configured = true
		switch {
		case cfg.Sheets.CredentialsFile == "":
			result.Sheets.Error = "sheets.credentials_file is not set"
		default:
			if _, err := os.Stat(cfg.Sheets.CredentialsFile); err != nil {
				result.Sheets.Error = err.Error()
			} else {
				result.Sheets.Credentials = true
			}
		}
	}

	result.OverallHealthy = result.AWS.Credentials &&
		result.AWS.RegionsOK &&
		(!result.Policy.Present || result.Policy.Valid) &&
		(!result.Sheets.Configured || result.Sheets.Credentials)

	return result
}

// renderDoctorTable writes the human-readable diagnostic output from result to w.
func renderDoctorTable(result DoctorResult, w io.Writer) {
	fmt.Fprintln(w, "Environment Diagnostics")

	if result.AWS.Profile != "" {
		fmt.Fprintf(w, "\nAWS (profile: %s):\n", result.AWS.Profile)
	} else {
		fmt.Fprintln(w, "\nAWS:")
	}
	if !result.AWS.Credentials {
		doctorPrint(w, "Credentials", "FAIL", result.AWS.Error)
		doctorPrint(w, "STS Identity", "FAIL", "skipped")
		doctorPrint(w, "Regions API", "FAIL", "skipped")
	} else {
		doctorPrint(w, "Credentials", "OK", "")
		doctorPrint(w, "STS Identity", "OK", "Account: "+result.AWS.AccountID)
		if result.AWS.RegionsOK {
			doctorPrint(w, "Regions API", "OK", "")
		} else {
			doctorPrint(w, "Regions API", "FAIL", result.AWS.Error)
		}
	}

	fmt.Fprintln(w, "\nPolicy:")
	label := result.Policy.Path + " present"
	if !result.Policy.Present {
		doctorPrint(w, label, "Not found (optional)", "")
	} else {
		doctorPrint(w, label, "YES", "")
		if result.Policy.Valid {
			doctorPrint(w, "Policy valid", "OK", "")
		} else {
			for _, e := range result.Policy.Errors {
				doctorPrint(w, "Policy valid", "FAIL", e)
			}
		}
	}

	fmt.Fprintln(w, "\nGoogle Sheets:")
	switch {
	case !result.Sheets.Configured:
		doctorPrint(w, "Export", "Not configured (optional)", "")
	case result.Sheets.Credentials:
		doctorPrint(w, "Credentials file", "OK", "")
	default:
		doctorPrint(w, "Credentials file", "FAIL", result.Sheets.Error)
	}
}

// doctorPrint writes a single diagnostic check line to w.
// When detail is non-empty it is appended in parentheses.
func doctorPrint(w io.Writer, label, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
	}
}
