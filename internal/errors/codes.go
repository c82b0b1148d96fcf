// Package errors defines pretext's structured error type and the stable
// codes behind it.
//
// Codes look like ERR_204_CORPUS_WRITE. The first digit of the number
// picks the category: 1xx config, 2xx dataset and corpus I/O, 4xx
// validation, 5xx internal. Category, severity, and retryability all
// derive from the code, so call sites only ever pick a code.
package errors

// Category classifies errors for logging and reporting.
type Category string

const (
	CategoryConfig     Category = "CONFIG"     // configuration loading and validation
	CategoryIO         Category = "IO"         // dataset reads, corpus writes, disk state
	CategoryValidation Category = "VALIDATION" // rejected input
	CategoryInternal   Category = "INTERNAL"   // bugs and unexpected states
)

// Severity tells the caller how to react.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"   // abort the run
	SeverityError   Severity = "ERROR"   // operation failed, run may continue
	SeverityWarning Severity = "WARNING" // degraded but recoverable
	SeverityInfo    Severity = "INFO"
)

// Config errors.
const (
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigParse    = "ERR_103_CONFIG_PARSE"
)

// Dataset and corpus I/O errors.
const (
	ErrCodeDatasetNotFound = "ERR_201_DATASET_NOT_FOUND"
	ErrCodeDatasetRead     = "ERR_202_DATASET_READ"
	ErrCodeDatasetDecode   = "ERR_203_DATASET_DECODE"
	ErrCodeCorpusWrite     = "ERR_204_CORPUS_WRITE"
	ErrCodeOutputLocked    = "ERR_205_OUTPUT_LOCKED"
	ErrCodeManifestIO      = "ERR_206_MANIFEST_IO"
	ErrCodeDiskFull        = "ERR_207_DISK_FULL"
)

// Validation errors.
const (
	ErrCodeInvalidFormat    = "ERR_401_INVALID_FORMAT"
	ErrCodeMissingTextField = "ERR_402_MISSING_TEXT_FIELD"
	ErrCodeVerifyFailed     = "ERR_403_VERIFY_FAILED"
	ErrCodeInvalidPath      = "ERR_404_INVALID_PATH"
	ErrCodeQueryEmpty       = "ERR_405_QUERY_EMPTY"
)

// Internal errors.
const (
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeIndexCorrupt  = "ERR_502_INDEX_CORRUPT"
	ErrCodeExtractFailed = "ERR_503_EXTRACT_FAILED"
)

// The digit after the ERR_ prefix selects the category.
var codeCategories = map[byte]Category{
	'1': CategoryConfig,
	'2': CategoryIO,
	'4': CategoryValidation,
	'5': CategoryInternal,
}

func categoryFromCode(code string) Category {
	if len(code) > 4 {
		if cat, ok := codeCategories[code[4]]; ok {
			return cat
		}
	}
	return CategoryInternal
}

// fatalCodes abort the run: a failed corpus write leaves a partial file
// behind and a corrupt index cannot serve queries.
var fatalCodes = map[string]bool{
	ErrCodeCorpusWrite:  true,
	ErrCodeDiskFull:     true,
	ErrCodeIndexCorrupt: true,
}

func severityFromCode(code string) Severity {
	switch {
	case fatalCodes[code]:
		return SeverityFatal
	case isRetryableCode(code):
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether another attempt could succeed. Only lock
// contention on the output file qualifies; every other failure reproduces
// deterministically.
func isRetryableCode(code string) bool {
	return code == ErrCodeOutputLocked
}
