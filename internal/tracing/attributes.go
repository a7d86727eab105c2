package tracing

// Span attribute keys following OpenTelemetry semantic conventions
const (
	// Form attributes
	AttrOrganization = "formai.organization"
	AttrFormID       = "formai.form.id"
	AttrFormVersion  = "formai.form.version"
	AttrFormStatus   = "formai.form.status"

	// Namespace attributes
	AttrNamespace   = "formai.namespace"
	AttrRecordID    = "formai.record.id"
	AttrRecordCount = "formai.record.count"
	AttrIsTest      = "formai.record.is_test"
	AttrFilter      = "formai.record.filter"

	// Generation attributes
	AttrModel   = "formai.generation.model"
	AttrAttempt = "formai.generation.attempt"

	// Operation attributes
	AttrOperation = "formai.operation"
	AttrStatus    = "formai.status"
	AttrError     = "formai.error"

	// HTTP attributes (OpenTelemetry semantic conventions)
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPUserAgent  = "http.user_agent"
)
