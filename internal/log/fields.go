package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldSourceID  = "source_id"
	FieldSubRange  = "sub_range"
	FieldBackend   = "backend"
	FieldHeaderRow = "header_row"
	FieldRows      = "rows"
	FieldColumns   = "columns"
	FieldCacheHit  = "cache_hit"
	FieldWarnings  = "warnings"
)

// Components
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentKPI       = "kpi"
	ComponentReport    = "report"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentTemplate  = "template"
)

// Operations
const (
	OpFetch     = "fetch"
	OpNormalize = "normalize"
	OpExtract   = "extract"
	OpExport    = "export"
	OpRefresh   = "refresh"
	OpRecord    = "record"
	OpRender    = "render"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)

// Fields is a small builder for structured log attributes.
type Fields map[string]any

// NewFields creates an empty field set.
func NewFields() Fields {
	return make(Fields)
}

// WithError adds the error message if err is not nil.
func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds the operation name.
func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

// WithSource adds the source id and sub-range.
func (f Fields) WithSource(sourceID, subRange string) Fields {
	f[FieldSourceID] = sourceID
	f[FieldSubRange] = subRange
	return f
}

// WithHTTPRequest adds request fields.
func (f Fields) WithHTTPRequest(method, path, query, userAgent string) Fields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds response fields.
func (f Fields) WithHTTPResponse(statusCode int, durationMs int64) Fields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields for slog.
func (f Fields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
