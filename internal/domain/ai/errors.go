package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrEstimator indicates a completion failed or returned output that could not be decoded.
var ErrEstimator = errors.New("estimator failure")
