package logger

import (
	"time"

	"go.uber.org/zap"
)

// HTTP fields.

// RequestID is the per-request correlation ID.
func RequestID(v string) zap.Field { return zap.String("request_id", v) }

// Method is the HTTP method.
func Method(v string) zap.Field { return zap.String("method", v) }

// Path is the request path.
func Path(v string) zap.Field { return zap.String("path", v) }

// Status is the HTTP status code.
func Status(v int) zap.Field { return zap.Int("status", v) }

// Duration is the request duration.
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// Bytes is the response size.
func Bytes(v int) zap.Field { return zap.Int("bytes", v) }

// Domain fields.

// ClientID is the OAuth client identifier.
func ClientID(v string) zap.Field { return zap.String("client_id", v) }

// UserID is the subject identifier.
func UserID(v string) zap.Field { return zap.String("user_id", v) }

// SessionID is the server-side session identifier.
func SessionID(v string) zap.Field { return zap.String("session_id", v) }

// Scope is a raw scope string.
func Scope(v string) zap.Field { return zap.String("scope", v) }

// GrantType is the token-endpoint grant type.
func GrantType(v string) zap.Field { return zap.String("grant_type", v) }

// System fields.

// Component names the component/module emitting the entry.
func Component(v string) zap.Field { return zap.String("component", v) }

// Op names the current operation.
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer names the layer (handler, service, store).
func Layer(v string) zap.Field { return zap.String("layer", v) }

// Err wraps an error.
func Err(err error) zap.Field { return zap.Error(err) }

// Generic fields.

// Count is a generic count.
func Count(v int) zap.Field { return zap.Int("count", v) }

// Key is a generic key.
func Key(v string) zap.Field { return zap.String("key", v) }

// String is a generic string field.
func String(key, v string) zap.Field { return zap.String(key, v) }

// Int is a generic int field.
func Int(key string, v int) zap.Field { return zap.Int(key, v) }

// Bool is a generic bool field.
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }

// Any is a generic field of any type.
func Any(key string, v any) zap.Field { return zap.Any(key, v) }
