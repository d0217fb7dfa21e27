package log

import "budgetbook/internal/core"

// Common field names for structured logging
const (
	FieldComponent       = "component"
	FieldRequestID       = "request_id"
	FieldClientIP        = "client_ip"
	FieldMethod          = "method"
	FieldPath            = "path"
	FieldQuery           = "query"
	FieldStatusCode      = "status_code"
	FieldDuration        = "duration_ms"
	FieldUserAgent       = "user_agent"
	FieldSuccess         = "success"
	FieldError           = "error"
	FieldErrorKind       = "error_kind"
	FieldOperation       = "operation"
	FieldOwnerID         = "owner_id"
	FieldEntryID         = "entry_id"
	FieldSpecID          = "spec_id"
	FieldOccurrenceIndex = "occurrence_index"
	FieldOccurrenceDate  = "occurrence_date"
	FieldAmountCents     = "amount_cents"
	FieldEventType       = "event_type"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentSheets       = "sheets"
	ComponentCache        = "cache"
	ComponentScheduler    = "scheduler"
	ComponentMaterializer = "materializer"
	ComponentReport       = "report"
	ComponentRateLimit    = "rate_limit"
	ComponentTrace        = "trace"
	ComponentCLI          = "cli"
)

// Operations defines standard operation names
const (
	OpCreate      = "create"
	OpRead        = "read"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpList        = "list"
	OpMaterialize = "materialize"
	OpProject     = "project"
	OpSync        = "sync"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error text and its stable kind.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorKind] = string(core.KindOf(err))
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithOwner(owner core.OwnerID) LogFields {
	f[FieldOwnerID] = string(owner)
	return f
}

// WithEntry adds the id and amount of a ledger entry.
func (f LogFields) WithEntry(e core.LedgerEntry) LogFields {
	f[FieldEntryID] = e.ID
	f[FieldAmountCents] = e.Amount.Signed(e.Kind)
	if e.SpecID != nil {
		f[FieldSpecID] = *e.SpecID
		f[FieldOccurrenceIndex] = e.OccurrenceIndex
	}
	return f
}

// WithOccurrence adds the spec, index and date of an occurrence.
func (f LogFields) WithOccurrence(o core.Occurrence) LogFields {
	f[FieldSpecID] = o.SpecID
	f[FieldOccurrenceIndex] = o.Index
	f[FieldOccurrenceDate] = o.Date.String()
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
