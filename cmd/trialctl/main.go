// trialctl is the operator CLI for the trial eligibility engine: offline
// patient evaluation, trial inventory, and rule-document validation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/trial-eligibility-engine/internal/config"
	"github.com/trial-eligibility-engine/internal/domain"
	"github.com/trial-eligibility-engine/internal/rules"
	"github.com/trial-eligibility-engine/internal/setup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "trialctl",
		Short:         "Clinical trial eligibility engine CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newTrialsCmd())
	root.AddCommand(newRulesCmd())
	return root
}

func loadEngine() (*setup.Engine, *config.Config, error) {
	configManager, err := config.NewManager()
	if err != nil {
		return nil, nil, err
	}
	if err := configManager.Validate(); err != nil {
		return nil, nil, err
	}

	cfg := configManager.GetConfig()
	logger := setup.NewLogger(&cfg.Logging)

	engine, err := setup.BuildEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}

func newEvaluateCmd() *cobra.Command {
	var patientPath string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one patient's facts against all loaded trials",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(patientPath)
			if err != nil {
				return fmt.Errorf("reading patient facts: %w", err)
			}

			var patient domain.PatientFacts
			if err := json.Unmarshal(raw, &patient); err != nil {
				return fmt.Errorf("parsing patient facts: %w", err)
			}

			engine, _, err := loadEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			report, err := engine.Orchestrator.EvaluatePatient(context.Background(), patient)
			if err != nil {
				return fmt.Errorf("evaluating patient: %w", err)
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&patientPath, "patient", "p", "", "path to patient facts JSON file")
	_ = cmd.MarkFlagRequired("patient")
	return cmd
}

func newTrialsCmd() *cobra.Command {
	trials := &cobra.Command{
		Use:   "trials",
		Short: "Inspect loaded trial rule documents",
	}

	trials.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List loaded trials",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := loadEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			for _, doc := range engine.Registry.All() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t(%d inclusion, %d exclusion)\n",
					doc.TrialID, doc.Title, len(doc.Inclusion), len(doc.Exclusion))
			}
			return nil
		},
	})

	return trials
}

func newRulesCmd() *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Work with trial rule documents",
	}

	validateCmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Validate rule documents and report structural findings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			validate := validator.New()
			failed := 0
			for _, path := range args {
				doc, err := rules.LoadDocument(path, validate)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL\t%s\t%v\n", path, err)
					continue
				}
				findings := rules.Lint(doc)
				if len(findings) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "OK\t%s\t(%s)\n", path, doc.TrialID)
					continue
				}
				for _, finding := range findings {
					fmt.Fprintf(cmd.OutOrStdout(), "WARN\t%s\t%s\n", path, finding)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d document(s) failed validation", failed)
			}
			return nil
		},
	}

	rulesCmd.AddCommand(validateCmd)
	return rulesCmd
}
