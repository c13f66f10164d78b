package main

import (
	"context"
	"fmt"

	"emperror.dev/errors"
	"github.com/rung-dev/rung/internal/colors"
	"github.com/rung-dev/rung/internal/doctor"
	"github.com/rung-dev/rung/internal/forge"
	"github.com/rung-dev/rung/internal/rerrors"
	"github.com/spf13/cobra"
)

// unreachableForge stands in for a real forge.Client when one couldn't be
// constructed (no token configured), so doctor's forge-connectivity check
// surfaces a per-PR warning instead of needing a nil-Client special case.
type unreachableForge struct{}

func (unreachableForge) GetPR(context.Context, string, string, uint64) (forge.PR, error) {
	return forge.PR{}, rerrors.ForgeAuthenticationFailed{}
}
func (unreachableForge) FindPRForBranch(context.Context, string, string, string) (*forge.PR, error) {
	return nil, rerrors.ForgeAuthenticationFailed{}
}
func (unreachableForge) CreatePR(context.Context, string, string, forge.CreatePROptions) (forge.PR, error) {
	return forge.PR{}, rerrors.ForgeAuthenticationFailed{}
}
func (unreachableForge) UpdatePR(context.Context, string, string, uint64, forge.UpdatePROptions) (forge.PR, error) {
	return forge.PR{}, rerrors.ForgeAuthenticationFailed{}
}
func (unreachableForge) MergePR(context.Context, string, string, uint64, forge.MergeOptions) (forge.MergeResult, error) {
	return forge.MergeResult{}, rerrors.ForgeAuthenticationFailed{}
}
func (unreachableForge) DeleteRef(context.Context, string, string, string) error {
	return rerrors.ForgeAuthenticationFailed{}
}
func (unreachableForge) ListPRComments(context.Context, string, string, uint64) ([]forge.Comment, error) {
	return nil, rerrors.ForgeAuthenticationFailed{}
}
func (unreachableForge) CreatePRComment(context.Context, string, string, uint64, string) (forge.Comment, error) {
	return forge.Comment{}, rerrors.ForgeAuthenticationFailed{}
}
func (unreachableForge) UpdatePRComment(context.Context, string, string, int64, string) (forge.Comment, error) {
	return forge.Comment{}, rerrors.ForgeAuthenticationFailed{}
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the repository, stack, and forge for consistency problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, err := getDriver(cmd.Context())
		if err != nil {
			return err
		}
		store := getStore(driver)
		mainline, err := getMainline()
		if err != nil {
			return err
		}

		var client forge.Client
		client, err = getForgeClient()
		if err != nil {
			client = unreachableForge{}
		}
		owner, repo, err := getOwnerRepo(cmd.Context(), driver)
		if err != nil {
			owner, repo = "", ""
		}

		engine := doctor.New(driver, client, store, owner, repo, mainline)
		report := engine.Run(cmd.Context())

		for _, issue := range report.Issues {
			marker := colors.Troubleshooting("i")
			if issue.Severity == doctor.SeverityWarning {
				marker = colors.Warning("!")
			}
			if issue.Severity == doctor.SeverityError {
				marker = colors.Failure("✗")
			}
			fmt.Printf("%s %s\n", marker, issue.Message)
			if issue.Suggestion != "" {
				fmt.Printf("    %s\n", colors.Troubleshooting(issue.Suggestion))
			}
		}

		if report.Healthy {
			if len(report.Issues) == 0 {
				fmt.Println(colors.Success("No issues found."))
			}
			return nil
		}
		fmt.Printf("%d error(s), %d warning(s).\n", report.Errors, report.Warnings)
		if report.Errors > 0 {
			return errors.New("doctor found unresolved errors")
		}
		return nil
	},
}
