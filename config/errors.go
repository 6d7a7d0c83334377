// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "errors"

var (
	ErrInvalidN              = errors.New("n must be >= 1")
	ErrInvalidF              = errors.New("f must be >= 0")
	ErrQuorumInvariant       = errors.New("n must be >= 3f+1")
	ErrEpochWindowTooLow     = errors.New("epoch window must be >= 1")
	ErrEpochTimeoutTooLow    = errors.New("epoch timeout must be >= 1ms")
	ErrMinEpochIntervalRange = errors.New("min epoch interval out of range")
)
