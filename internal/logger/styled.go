package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"github.com/newrey/llm-gateway/theme"
)

// StyledLogger wraps slog.Logger with theme-aware formatting for the
// handful of messages worth colouring on a terminal: provider/model
// names, counts, and health outcomes.
type StyledLogger struct {
	logger *slog.Logger
	theme  *theme.Theme
}

// NewStyledLogger creates a new styled logger with the given theme.
func NewStyledLogger(logger *slog.Logger, appTheme *theme.Theme) *StyledLogger {
	return &StyledLogger{logger: logger, theme: appTheme}
}

func (sl *StyledLogger) Debug(msg string, args ...any) { sl.logger.Debug(msg, args...) }
func (sl *StyledLogger) Info(msg string, args ...any)  { sl.logger.Info(msg, args...) }
func (sl *StyledLogger) Warn(msg string, args ...any)  { sl.logger.Warn(msg, args...) }
func (sl *StyledLogger) Error(msg string, args ...any) { sl.logger.Error(msg, args...) }

func (sl *StyledLogger) InfoWithCount(msg string, count int, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.theme.Counts}.Sprint("(", count, ")"))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) InfoWithProvider(msg string, provider string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.theme.Endpoint}.Sprint(provider))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) WarnWithProvider(msg string, provider string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.theme.Endpoint}.Sprint(provider))
	sl.logger.Warn(styledMsg, args...)
}

func (sl *StyledLogger) ErrorWithProvider(msg string, provider string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.theme.Endpoint}.Sprint(provider))
	sl.logger.Error(styledMsg, args...)
}

// InfoHealthCheck logs the start of a probe against one (model, provider) pair.
func (sl *StyledLogger) InfoHealthCheck(msg string, model, provider string, args ...any) {
	target := fmt.Sprintf("%s@%s", model, provider)
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.theme.HealthCheck}.Sprint(target))
	sl.logger.Info(styledMsg, args...)
}

// InfoHealthResult logs the outcome of a probe, coloured by result.OK.
func (sl *StyledLogger) InfoHealthResult(msg string, model, provider string, ok bool, args ...any) {
	target := fmt.Sprintf("%s@%s", model, provider)
	statusColor := sl.theme.HealthUnhealthy
	statusText := "unhealthy"
	if ok {
		statusColor = sl.theme.HealthHealthy
		statusText = "healthy"
	}
	styledMsg := fmt.Sprintf("%s %s is %s", msg,
		pterm.Style{sl.theme.Endpoint}.Sprint(target),
		pterm.Style{statusColor}.Sprint(statusText))
	sl.logger.Info(styledMsg, args...)
}

// GetUnderlying returns the underlying slog.Logger for direct access.
func (sl *StyledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}

// WithAttrs creates a new StyledLogger with additional structured attributes.
func (sl *StyledLogger) WithAttrs(attrs ...slog.Attr) *StyledLogger {
	args := make([]any, 0, len(attrs)*2)
	for _, attr := range attrs {
		args = append(args, attr.Key, attr.Value)
	}
	return &StyledLogger{logger: sl.logger.With(args...), theme: sl.theme}
}

// With creates a new StyledLogger with additional key-value pairs.
func (sl *StyledLogger) With(args ...any) *StyledLogger {
	return &StyledLogger{logger: sl.logger.With(args...), theme: sl.theme}
}

// NewWithTheme creates both a regular logger and a styled logger.
func NewWithTheme(cfg *Config) (*slog.Logger, *StyledLogger, func(), error) {
	baseLogger, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	appTheme := theme.GetTheme(cfg.Theme)
	styledLogger := NewStyledLogger(baseLogger, appTheme)

	return baseLogger, styledLogger, cleanup, nil
}
