// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nuno1212s/dumbo/logging"
)

// Validation errors.
var (
	ErrNTooLow             = errors.New("n is too low")
	ErrFTooLow             = errors.New("f is too low")
	ErrQuorumRatioViolated = errors.New("n is too low for f")
	ErrCoinThresholdLow    = errors.New("coin threshold is too low")
	ErrCoinThresholdHigh   = errors.New("coin threshold is too high")
	ErrEpochWindowLow      = errors.New("epoch window is too low")
	ErrEpochTimeoutLow     = errors.New("epoch timeout is too low")
)

// ValidationMode determines how strict validation should be.
type ValidationMode int

const (
	// StrictMode enforces all security and performance constraints.
	StrictMode ValidationMode = iota
	// SoftMode allows some flexibility for experimental configurations.
	SoftMode
)

// ValidationError contains detailed validation error information. Err
// is one of the package's sentinel errors (ErrNTooLow,
// ErrQuorumRatioViolated, ...) when the violated constraint has one,
// and nil for checks with no matching sentinel (e.g. the F==0
// strict-mode warning).
type ValidationError struct {
	Field      string
	Value      interface{}
	Constraint string
	Severity   string // "error" or "warning"
	Suggestion string
	Err        error
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s=%v violates constraint: %s", ve.Severity, ve.Field, ve.Value, ve.Constraint)
}

func (ve ValidationError) Unwrap() error { return ve.Err }

// ValidationResult contains all validation errors and warnings.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
	Valid    bool
}

// Validator validates engine configurations.
type Validator struct {
	mode ValidationMode
	log  logging.Logger
}

// NewValidator creates a validator with strict mode by default.
func NewValidator() *Validator {
	return &Validator{mode: StrictMode, log: logging.NewNoOp()}
}

// WithMode sets the validation mode.
func (v *Validator) WithMode(mode ValidationMode) *Validator {
	v.mode = mode
	return v
}

// WithLogger attaches a logger the validator warns through.
func (v *Validator) WithLogger(log logging.Logger) *Validator {
	if log != nil {
		v.log = log
	}
	return v
}

// Validate performs comprehensive validation of a configuration.
func (v *Validator) Validate(cfg *Config) error {
	result := v.ValidateDetailed(cfg)
	if !result.Valid {
		var errStrs []string
		for _, err := range result.Errors {
			errStrs = append(errStrs, err.Error())
		}
		return fmt.Errorf("validation failed:\n%s", strings.Join(errStrs, "\n"))
	}
	return nil
}

// ValidateDetailed returns detailed validation results.
func (v *Validator) ValidateDetailed(cfg *Config) *ValidationResult {
	result := &ValidationResult{Valid: true}

	v.validateFaultModel(cfg, result)
	v.validateCoinThreshold(cfg, result)
	v.validateTiming(cfg, result)

	if v.mode == StrictMode {
		v.validateSecurity(cfg, result)
	}

	return result
}

func (v *Validator) validateFaultModel(cfg *Config, result *ValidationResult) {
	if cfg.N < 1 {
		v.addError(result, ErrNTooLow, "N", cfg.N, "must be at least 1", "Set N >= 1")
	}
	if cfg.F < 0 {
		v.addError(result, ErrFTooLow, "F", cfg.F, "must be >= 0", "Set F >= 0")
	}
	if cfg.N < 3*cfg.F+1 {
		v.addError(result, ErrQuorumRatioViolated, "N", cfg.N,
			fmt.Sprintf("must be >= 3f+1 (%d)", 3*cfg.F+1),
			fmt.Sprintf("Set N >= %d or lower F", 3*cfg.F+1))
	}
	if cfg.F == 0 && v.mode == StrictMode {
		v.addWarning(result, nil, "F", cfg.F, "f=0 tolerates no Byzantine nodes", "Consider F >= 1 for production")
	}
}

func (v *Validator) validateCoinThreshold(cfg *Config, result *ValidationResult) {
	if cfg.CoinThreshold == 0 {
		return
	}
	if cfg.CoinThreshold < cfg.F+1 {
		v.addError(result, ErrCoinThresholdLow, "CoinThreshold", cfg.CoinThreshold,
			fmt.Sprintf("must be >= f+1 (%d)", cfg.F+1),
			fmt.Sprintf("Set CoinThreshold >= %d", cfg.F+1))
	}
	if cfg.CoinThreshold > cfg.N {
		v.addError(result, ErrCoinThresholdHigh, "CoinThreshold", cfg.CoinThreshold,
			fmt.Sprintf("cannot exceed N (%d)", cfg.N),
			fmt.Sprintf("Set CoinThreshold <= %d", cfg.N))
	}
}

func (v *Validator) validateTiming(cfg *Config, result *ValidationResult) {
	if cfg.EpochWindow != 0 && cfg.EpochWindow < 1 {
		v.addError(result, ErrEpochWindowLow, "EpochWindow", cfg.EpochWindow, "must be at least 1", "Set EpochWindow >= 1")
	}
	if cfg.MaxOutstandingEpochs != 0 && cfg.MaxOutstandingEpochs < cfg.EpochWindow {
		v.addError(result, nil, "MaxOutstandingEpochs", cfg.MaxOutstandingEpochs,
			fmt.Sprintf("must be >= EpochWindow (%d)", cfg.EpochWindow),
			fmt.Sprintf("Set MaxOutstandingEpochs >= %d", cfg.EpochWindow))
	}
	if cfg.EpochTimeout != 0 && cfg.EpochTimeout < 100*time.Millisecond {
		v.addError(result, ErrEpochTimeoutLow, "EpochTimeout", cfg.EpochTimeout,
			"must be at least 100ms", "Set EpochTimeout >= 100ms")
	}

	if cfg.MinEpochInterval != 0 {
		if cfg.MinEpochInterval < time.Microsecond || cfg.MinEpochInterval > 500*time.Millisecond {
			v.addError(result, nil, "MinEpochInterval", cfg.MinEpochInterval,
				"must be in range [1us, 500ms]",
				"Set MinEpochInterval between 1us and 500ms")
		} else if cfg.MinEpochInterval < 10*time.Millisecond {
			v.log.Warn("low min epoch interval detected, CPU/network may be overloaded")
			v.addWarning(result, nil, "MinEpochInterval", cfg.MinEpochInterval,
				"very low interval (<10ms) may overload CPU/network",
				"Consider MinEpochInterval >= 10ms unless on a high-performance network")
		}
	}
}

func (v *Validator) validateSecurity(cfg *Config, result *ValidationResult) {
	if cfg.N == 0 {
		return
	}
	tolerancePercent := float64(cfg.F) / float64(cfg.N) * 100
	if tolerancePercent < 20 {
		v.addWarning(result, nil, "F", cfg.F,
			fmt.Sprintf("low Byzantine tolerance (%.1f%%)", tolerancePercent),
			"Consider raising F relative to N for better fault tolerance")
	}
	if cfg.CoinThreshold != 0 && cfg.CoinThreshold > cfg.F+1 && v.mode == StrictMode {
		v.addWarning(result, nil, "CoinThreshold", cfg.CoinThreshold,
			fmt.Sprintf("above the minimal reconstruction threshold f+1 (%d)", cfg.F+1),
			"A threshold above f+1 narrows the set of correct nodes able to reconstruct a coin")
	}
}

func (v *Validator) addError(result *ValidationResult, err error, field string, value interface{},
	constraint string, suggestion string,
) {
	result.Errors = append(result.Errors, ValidationError{
		Field:      field,
		Value:      value,
		Constraint: constraint,
		Severity:   "error",
		Suggestion: suggestion,
		Err:        err,
	})
	result.Valid = false
}

func (v *Validator) addWarning(result *ValidationResult, err error, field string, value interface{},
	constraint string, suggestion string,
) {
	result.Warnings = append(result.Warnings, ValidationError{
		Field:      field,
		Value:      value,
		Constraint: constraint,
		Severity:   "warning",
		Suggestion: suggestion,
		Err:        err,
	})
}

// ValidateForProduction performs strict validation for production use.
func ValidateForProduction(cfg *Config) error {
	validator := NewValidator().WithMode(StrictMode)
	result := validator.ValidateDetailed(cfg)

	if cfg.F < 1 {
		return fmt.Errorf("f must be at least 1 for production (got %d)", cfg.F)
	}

	if !result.Valid {
		var errStrs []string
		for _, err := range result.Errors {
			errStrs = append(errStrs, err.Error())
		}
		return fmt.Errorf("validation failed:\n%s", strings.Join(errStrs, "\n"))
	}

	return nil
}
