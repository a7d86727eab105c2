package metrics

// Metric name constants following Prometheus naming conventions
// Format: formai_{component}_{metric}_{unit}

// Form metrics
const (
	MetricFormsCreatedTotal     = "formai_forms_created_total"
	MetricFormTransitionsTotal  = "formai_form_transitions_total"
	MetricFormSchemaUpdates     = "formai_form_schema_updates_total"
	MetricFormOperationDuration = "formai_form_operation_duration_seconds"
)

// Submission metrics
const (
	MetricSubmissionsTotal         = "formai_submissions_total"
	MetricSubmissionsRejectedTotal = "formai_submissions_rejected_total"
	MetricSubmissionsDeletedTotal  = "formai_submissions_deleted_total"
	MetricSubmissionExportsTotal   = "formai_submission_exports_total"
	MetricSubmissionCreateDuration = "formai_submission_create_duration_seconds"
)

// Namespace metrics
const (
	MetricNamespacesProvisioned   = "formai_namespaces_provisioned_total"
	MetricNamespaceOpenDBs        = "formai_namespace_open_dbs"
	MetricNamespacePurgedRecords  = "formai_namespace_purged_records_total"
	MetricNamespaceOperationTotal = "formai_namespace_operations_total"
	MetricNamespaceOpDuration     = "formai_namespace_operation_duration_seconds"
)

// Generation metrics
const (
	MetricGenerationRequestsTotal = "formai_generation_requests_total"
	MetricGenerationAttemptsTotal = "formai_generation_attempts_total"
	MetricGenerationDuration      = "formai_generation_duration_seconds"
)

// Node-level metrics
const (
	MetricBuildInfo          = "formai_build_info"
	MetricAPIRequestsTotal   = "formai_api_requests_total"
	MetricAPIRequestDuration = "formai_api_request_duration_seconds"
)

// Label name constants
const (
	LabelOrganization = "organization"
	LabelTransition   = "transition"
	LabelOperation    = "operation"
	LabelStatus       = "status"
	LabelReason       = "reason"
	LabelMode         = "mode"
	LabelOutcome      = "outcome"
	LabelMethod       = "method"
	LabelEndpoint     = "endpoint"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// outcome maps an error to an outcome label value
func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
