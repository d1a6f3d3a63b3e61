package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// =============================================================================
// AUDIT EVENTS - Everything gtmvars does to the host page or to disk
// =============================================================================

// AuditEventType names an audited action
type AuditEventType string

const (
	AuditLoadStart     AuditEventType = "load_start"
	AuditLoadComplete  AuditEventType = "load_complete"
	AuditLoadError     AuditEventType = "load_error"
	AuditSelectionSet  AuditEventType = "selection_set"
	AuditHostClick     AuditEventType = "host_click"
	AuditBulkDelete    AuditEventType = "bulk_delete"
	AuditExportWritten AuditEventType = "export_written"
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	EventType  AuditEventType
	RequestID  string
	Target     string
	Success    bool
	DurationMs int64
	Error      string
	Fields     map[string]interface{}
}

// AuditLogger writes JSON lines to audit.jsonl. The zero value discards.
type AuditLogger struct {
	logger *zap.Logger
}

var (
	auditMu   sync.Mutex
	auditFile *os.File
	audit     = &AuditLogger{logger: zap.NewNop()}
)

// InitAudit opens the audit trail. It is a no-op unless debug mode is on.
func InitAudit() error {
	if !IsDebugMode() || logsDir == "" {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	path := filepath.Join(logsDir, "audit.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.EpochMillisTimeEncoder
	cfg.MessageKey = "event"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(f), zapcore.InfoLevel)
	auditFile = f
	audit = &AuditLogger{logger: zap.New(core)}
	return nil
}

// CloseAudit flushes and closes the audit trail
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	_ = audit.logger.Sync()
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
	audit = &AuditLogger{logger: zap.NewNop()}
}

// Audit returns the process audit logger
func Audit() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	return audit
}

// Log writes an event
func (a *AuditLogger) Log(e AuditEvent) {
	fields := []zap.Field{
		zap.String("req", e.RequestID),
		zap.String("target", e.Target),
		zap.Bool("success", e.Success),
	}
	if e.DurationMs > 0 {
		fields = append(fields, zap.Int64("dur_ms", e.DurationMs))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	if len(e.Fields) > 0 {
		fields = append(fields, zap.Any("fields", e.Fields))
	}
	a.logger.Info(string(e.EventType), fields...)
}

// HostClick records a click issued into the host page
func (a *AuditLogger) HostClick(target string, err error) {
	a.Log(AuditEvent{EventType: AuditHostClick, Target: target, Success: err == nil, Error: errString(err)})
}

// SelectionSet records a persisted selection change
func (a *AuditLogger) SelectionSet(name string, checked bool) {
	a.Log(AuditEvent{
		EventType: AuditSelectionSet,
		Target:    name,
		Success:   true,
		Fields:    map[string]interface{}{"checked": checked},
	})
}

// BulkDelete records a bulk delete attempt
func (a *AuditLogger) BulkDelete(names []string, dur time.Duration, err error) {
	a.Log(AuditEvent{
		EventType:  AuditBulkDelete,
		Success:    err == nil,
		DurationMs: dur.Milliseconds(),
		Error:      errString(err),
		Fields:     map[string]interface{}{"variables": names},
	})
}

// Load records the outcome of a popup load
func (a *AuditLogger) Load(requestID string, variables int, dur time.Duration, err error) {
	ev := AuditLoadComplete
	if err != nil {
		ev = AuditLoadError
	}
	a.Log(AuditEvent{
		EventType:  ev,
		RequestID:  requestID,
		Success:    err == nil,
		DurationMs: dur.Milliseconds(),
		Error:      errString(err),
		Fields:     map[string]interface{}{"variables": variables},
	})
}

// ExportWritten records a CSV export
func (a *AuditLogger) ExportWritten(path string, rows int) {
	a.Log(AuditEvent{
		EventType: AuditExportWritten,
		Target:    path,
		Success:   true,
		Fields:    map[string]interface{}{"rows": rows},
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
