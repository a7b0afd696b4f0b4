package extractor

// ExtractError is the single failure type surfaced by the extraction client.
// Reason carries the classification; Err carries the underlying cause.
type ExtractError struct {
	Reason string
	Err    error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return "extraction failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "extraction failed: " + e.Reason
}

func (e *ExtractError) Unwrap() error { return e.Err }
