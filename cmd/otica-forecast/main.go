package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/iwvelando/otica-forecast/internal/config"
	"github.com/iwvelando/otica-forecast/internal/forecast"
	"github.com/iwvelando/otica-forecast/pkg/constants"
	"github.com/iwvelando/otica-forecast/pkg/output"
	"github.com/iwvelando/otica-forecast/pkg/validation"
	"go.uber.org/zap"
)

func main() {
	// Process command line flags first to get config location
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to plan file")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv, json, xlsx")
	outputFile := flag.String("output-file", "", "write the report to this file instead of stdout")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	// Load the plan to get logging configuration
	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Fprintf(os.Stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// CLI override takes precedence over the plan file
	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	target := *outputFile
	if target == "" {
		target = conf.Output.File
	}
	if target == "" && outputFormat == constants.OutputFormatXLSX {
		target = constants.DefaultXLSXFile
	}

	plan := forecast.NewEngine(logger).Evaluate(conf.AssumptionBundle)
	for _, f := range plan.Findings() {
		logger.Debug(fmt.Sprintf("%s: %s", f.RuleID, f.Message),
			zap.String("op", "main"),
			zap.String("severity", string(f.Severity)),
			zap.Int("month", f.Month),
		)
	}

	if err := writeReport(target, outputFormat, plan); err != nil {
		logger.Fatal("failed to write report",
			zap.String("op", "main"),
			zap.String("file", target),
			zap.Error(err),
		)
	}

	logger.Info("plan evaluated",
		zap.String("op", "main"),
		zap.String("plan", plan.ID),
		zap.String("status", string(plan.Viability.Status)),
		zap.Int("score", plan.Viability.Score),
	)
}

// writeReport renders the plan to target, or to stdout when target is empty.
// The file is closed before returning and removed when the write fails, so a
// truncated report is never left behind.
func writeReport(target, outputFormat string, plan forecast.FinancialPlan) error {
	if target == "" {
		return output.Write(os.Stdout, outputFormat, plan)
	}

	file, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", target, err)
	}
	if err := output.Write(file, outputFormat, plan); err != nil {
		_ = file.Close()
		_ = os.Remove(target)
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close output file %s: %w", target, err)
	}
	return nil
}
