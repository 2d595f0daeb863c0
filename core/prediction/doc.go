// Package prediction defines the remaining-useful-life predictor capability.
// Predictors are optional: callers check IsAvailable before use and fall
// back to the cycle-based health estimate when Predict returns
// ErrUnavailable or any other error.
package prediction
