// Package constants provides shared constants for the otica-forecast application.
package constants

// DateTimeLayout is the format expected in plan files for the projection start
// month and is also the month label format in outputs.
const DateTimeLayout = "2006-01"

// DefaultStartMonth is used when a plan does not name its first projected
// month. A fixed value keeps evaluation deterministic.
const DefaultStartMonth = "2025-01"

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// ProjectionMonths is the length of the DRE and cash-flow horizon
	ProjectionMonths = 12

	// DecimalPlaces is the precision for currency rounding (2 decimal places)
	DecimalPlaces = 2

	// BusinessDaysPerMonth is used to derive sales per day
	BusinessDaysPerMonth = 26

	// NPVYears is the horizon of the five-year net present value
	NPVYears = 5

	// NPVDiscountRate is the annual discount rate (percent) for the NPV
	NPVDiscountRate = 12.0
)

// Brazilian reference values (2025).
const (
	// MinimumWage is the national minimum monthly wage
	MinimumWage = 1518.00

	// MEIMonthlyDAS is the fixed monthly DAS for a commerce MEI (75.90 INSS + 1.00 ICMS)
	MEIMonthlyDAS = 76.90

	// MEIAnnualLimit is the MEI annual revenue ceiling
	MEIAnnualLimit = 81000.00

	// MEIMaxEmployees is the MEI headcount ceiling
	MEIMaxEmployees = 1

	// SimplesAnnualLimit is the Simples Nacional annual revenue ceiling
	SimplesAnnualLimit = 4800000.00
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON document format consumed by the workbench
	OutputFormatJSON = "json"

	// OutputFormatXLSX is the spreadsheet export
	OutputFormatXLSX = "xlsx"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default plan file name
	DefaultConfigFile = "plan.yaml"

	// ExampleConfigFile is the example plan file name
	ExampleConfigFile = "plan.yaml.example"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// DefaultXLSXFile is the spreadsheet written when no output file is given
	DefaultXLSXFile = "plano-financeiro.xlsx"

	// EnvPrefix namespaces environment overrides (OTICA_SALES_MONTH_1, ...)
	EnvPrefix = "OTICA"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum request body size (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024
)

// Validation constants
const (
	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// MaxPercent is the upper bound of ordinary percent fields
	MaxPercent = 100.0

	// MaxMarginPercent is the upper bound of pricing margin fields
	MaxMarginPercent = 1000.0

	// ProfileSumTolerance is how far supplier payment shares may drift from 100
	ProfileSumTolerance = 0.01
)
