// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package logging defines the narrow logger interface every
// subprotocol accepts, trimmed from the teacher's github.com/luxfi/log
// surface down to the handful of methods this core actually calls
// (see DESIGN.md).
package logging

import "go.uber.org/zap"

// Logger is the structured logging surface subprotocols are given.
// Implementations must be safe for concurrent use.
type Logger interface {
	// With returns a child logger with the given structured fields
	// attached to every subsequent call.
	With(fields ...zap.Field) Logger

	Trace(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// noop is the default Logger: it discards everything. Subprotocols
// never require a logger to make progress (spec.md §7: logging is an
// ambient concern, never part of the protocol's correctness).
type noop struct{}

// NewNoOp returns a Logger that discards every call.
func NewNoOp() Logger { return noop{} }

func (noop) With(...zap.Field) Logger       { return noop{} }
func (noop) Trace(string, ...zap.Field)     {}
func (noop) Debug(string, ...zap.Field)     {}
func (noop) Info(string, ...zap.Field)      {}
func (noop) Warn(string, ...zap.Field)      {}
func (noop) Error(string, ...zap.Field)     {}

// Zap adapts a *zap.Logger into Logger, for callers that want real
// output instead of NewNoOp.
func Zap(z *zap.Logger) Logger { return zapLogger{z} }

type zapLogger struct{ z *zap.Logger }

func (l zapLogger) With(fields ...zap.Field) Logger { return zapLogger{l.z.With(fields...)} }
func (l zapLogger) Trace(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l zapLogger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l zapLogger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l zapLogger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l zapLogger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }
