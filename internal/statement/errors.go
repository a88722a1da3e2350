package statement

import "errors"

// Error taxonomy for the pipeline. Stage failures are recovered locally via
// fallback substitution; only ErrAllStrategiesFailed reaches the caller.
var (
	// ErrExtractionFailed marks a stage that produced no usable output.
	// It triggers the next fallback strategy.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrClassificationParse marks an external-classifier response that was
	// not valid structured data. It triggers a chunk-size retry.
	ErrClassificationParse = errors.New("classification response parse error")

	// ErrTruncated marks a service-reported max-output condition.
	ErrTruncated = errors.New("classification response truncated")

	// ErrAllStrategiesFailed is the only hard error the pipeline surfaces:
	// every strategy was exhausted without output.
	ErrAllStrategiesFailed = errors.New("all extraction strategies failed")
)
