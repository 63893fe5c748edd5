package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iwvelando/otica-forecast/internal/forecast"
	"github.com/iwvelando/otica-forecast/pkg/testutil"
)

func TestWriteReport(t *testing.T) {
	plan := forecast.NewEngine(nil).Evaluate(testutil.BaselineBundle())

	tests := []struct {
		name      string
		format    string
		wantError bool
	}{
		{name: "CSV file", format: "csv"},
		{name: "Workbook", format: "xlsx"},
		{name: "Unknown format leaves no file", format: "pdf", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := filepath.Join(t.TempDir(), "report."+tt.format)
			err := writeReport(target, tt.format, plan)
			if tt.wantError {
				if err == nil {
					t.Fatal("writeReport() expected error but got none")
				}
				if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
					t.Errorf("expected %s to be removed after a failed write, stat error = %v", target, statErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("writeReport() unexpected error = %v", err)
			}
			info, err := os.Stat(target)
			if err != nil {
				t.Fatalf("report not written: %v", err)
			}
			if info.Size() == 0 {
				t.Errorf("report %s is empty", target)
			}
		})
	}
}

func TestWriteReportCreateError(t *testing.T) {
	plan := forecast.NewEngine(nil).Evaluate(testutil.BaselineBundle())
	target := filepath.Join(t.TempDir(), "missing", "report.csv")

	err := writeReport(target, "csv", plan)
	if err == nil || !strings.Contains(err.Error(), "failed to create output file") {
		t.Errorf("writeReport() error = %v, expected a create failure", err)
	}
}
