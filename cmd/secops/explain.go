package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/render"
)

func newExplainCmd(env *environment) *cobra.Command {
	var (
		from   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "explain <bucket|queue|security-group>",
		Short: "Explain the verdict for one resource from a saved JSON report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := readReport(from)
			if err != nil {
				return err
			}
			name := args[0]

			v := render.FindVerdict(report.Verdicts, name)
			sg := render.FindSecurityGroup(report.SecurityGroups, name)

			if format == "json" {
				if v != nil {
					return render.WriteExplainJSON(env.stdout, v, name)
				}
				return render.WriteExplainJSON(env.stdout, sg, name)
			}

			switch {
			case v != nil:
				render.RenderVerdictExplanation(env.stdout, *v, report.Findings)
			case sg != nil:
				render.RenderSecurityGroupExplanation(env.stdout, *sg)
			default:
				return fmt.Errorf("no resource named %q in %s", name, from)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "JSON report written by 'secops aws audit --output'")
	cmd.Flags().StringVar(&format, "format", "table", `Output format: "table" or "json"`)
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func readReport(path string) (*models.AuditReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report %q: %w", path, err)
	}
	var report models.AuditReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse report %q: %w", path, err)
	}
	return &report, nil
}
