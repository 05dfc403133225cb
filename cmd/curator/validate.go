package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the job configuration",
		Long: `Parse the config file and run every job's validation without touching the
catalog or the filesystem. Reports each job's verdict; exits nonzero when any
job is invalid.`,
		Example: `  curator validate --config jobs.yaml`,
		RunE:    validateRun,
	}

	return cmd
}

func validateRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	if len(globalCfg.Jobs) == 0 {
		return fmt.Errorf("config has no jobs")
	}

	invalid := 0
	for i := range globalCfg.Jobs {
		job := globalCfg.Jobs[i]
		name := job.Name
		if name == "" {
			name = fmt.Sprintf("<job %d>", i+1)
		}

		if err := job.Validate(); err != nil {
			fmt.Printf("  INVALID  %s: %v\n", name, err)
			invalid++
			continue
		}

		start, _ := job.Start()
		end, _ := job.End()
		layout := "grouped by date"
		if job.KeepOriginalPath {
			layout = fmt.Sprintf("mirror under mount %s", job.Mount())
		} else if !job.GroupedByDate() {
			layout = "flat"
		}
		fmt.Printf("  OK       %s: %s to %s, vsn %s, upload %s, %s\n",
			name, start.Format("2006-01-02"), end.Format("2006-01-02"),
			job.VSN, job.UploadName, layout)
	}

	if _, _, err := globalCfg.ResolveCredentials(); err != nil {
		fmt.Printf("  WARNING  %v\n", err)
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d jobs invalid", invalid, len(globalCfg.Jobs))
	}

	fmt.Printf("All %d jobs valid\n", len(globalCfg.Jobs))
	return nil
}
