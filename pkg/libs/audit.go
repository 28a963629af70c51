package libs

import (
	"go.uber.org/zap"
)

const (
	EventSignup          = "signup"
	EventSignupFailed    = "signup_failed"
	EventLogin           = "login"
	EventLoginFailed     = "login_failed"
	EventFactorEnrolled  = "factor_enrolled"
	EventFactorPassed    = "factor_passed"
	EventFactorFailed    = "factor_failed"
	EventRateLimited     = "rate_limited"
	EventLogout          = "logout"
	EventSessionRenewed  = "session_renewed"
	EventSessionInvalid  = "session_invalid"
	EventProfileUpdated  = "profile_updated"
	EventTransitionError = "state_transition_failed"
	EventRequestFailed   = "request_failed"
)

type AuditLogger struct {
	Log *zap.Logger
}

func NewAuditLogger(log *zap.Logger) *AuditLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditLogger{Log: log.Named("audit")}
}

func (a *AuditLogger) LogEvent(event string, fields ...zap.Field) {
	a.Log.Info(event, fields...)
}

func (a *AuditLogger) LogFailure(event string, err error, fields ...zap.Field) {
	a.Log.Warn(event, append(fields, zap.Error(err))...)
}

// LogError records failures that are not expected in normal operation.
func (a *AuditLogger) LogError(event string, err error, fields ...zap.Field) {
	a.Log.Error(event, append(fields, zap.Error(err))...)
}
