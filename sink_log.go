package framesink

import "go.uber.org/zap"

// Structured log field names used across the sink.
const (
	FieldSlot     = "slot"
	FieldPrev     = "prev"
	FieldInFlight = "in_flight"
	FieldToken    = "token"
	FieldKind     = "kind"
	FieldReason   = "reason"
	FieldRect     = "rect"
	FieldState    = "state"
)

func newSinkLogger(l *zap.Logger) *zap.SugaredLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return l.Named("framesink").Sugar()
}
