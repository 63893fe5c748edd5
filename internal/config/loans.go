package config

import (
	"fmt"

	"github.com/iwvelando/otica-forecast/pkg/constants"
	"github.com/iwvelando/otica-forecast/pkg/financing"
	"go.uber.org/zap"
)

// FinancingSchedule computes the amortization schedule of the investment loan
// and returns its first twelve months, padded with zero payments. A bundle
// without financing yields an all-zero window.
func (b AssumptionBundle) FinancingSchedule(logger *zap.Logger) ([]financing.Payment, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loan := b.Financing
	if loan.Name == "" {
		loan.Name = "investment"
	}

	generator := financing.NewScheduleGenerator(logger)
	schedule, err := generator.GenerateSchedule(loan)
	if err != nil {
		return nil, fmt.Errorf("financing schedule: %w", err)
	}

	window := financing.Window(schedule, constants.ProjectionMonths)
	if len(schedule) > 0 {
		logger.Debug(fmt.Sprintf("loan %s: first installment %.2f", loan.Name, window[0].Payment),
			zap.String("op", "config.FinancingSchedule"),
		)
	}
	return window, nil
}
