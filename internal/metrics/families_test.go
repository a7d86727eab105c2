package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatheredNames(t *testing.T, c *Collector) map[string]bool {
	t.Helper()
	families, err := c.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewSet_RegistersFamilies(t *testing.T) {
	set := NewSet()
	require.NotNil(t, set.Collector)

	set.Forms.RecordCreated("acme")
	set.Forms.RecordTransition("draft", "published")
	set.Forms.RecordSchemaUpdate("acme")
	set.Forms.RecordOperation("publish", nil, 10*time.Millisecond)
	set.Submissions.RecordAccepted(true, time.Millisecond)
	set.Submissions.RecordRejected("closed", time.Millisecond)
	set.Submissions.RecordDeleted()
	set.Submissions.RecordExport(errors.New("boom"))
	set.Namespaces.RecordProvisioned()
	set.Namespaces.SetOpenDBs(2)
	set.Namespaces.RecordPurge(3)
	set.Namespaces.RecordOperation("insert", nil, time.Millisecond)
	set.Generation.RecordRequest("generate", nil, time.Second)
	set.Generation.RecordAttempt("generate", "ok")
	set.Node.RecordAPIRequest("GET", "/health", "200", time.Millisecond)

	names := gatheredNames(t, set.Collector)
	for _, name := range []string{
		MetricFormsCreatedTotal,
		MetricFormTransitionsTotal,
		MetricFormSchemaUpdates,
		MetricFormOperationDuration,
		MetricSubmissionsTotal,
		MetricSubmissionsRejectedTotal,
		MetricSubmissionsDeletedTotal,
		MetricSubmissionExportsTotal,
		MetricNamespacesProvisioned,
		MetricNamespaceOpenDBs,
		MetricNamespacePurgedRecords,
		MetricNamespaceOperationTotal,
		MetricGenerationRequestsTotal,
		MetricGenerationAttemptsTotal,
		MetricAPIRequestsTotal,
	} {
		assert.True(t, names[name], "metric %s should be gathered", name)
	}
}

func TestNilMetrics_AreSafe(t *testing.T) {
	var forms *FormMetrics
	var subs *SubmissionMetrics
	var ns *NamespaceMetrics
	var gen *GenerationMetrics
	var node *NodeMetrics

	assert.NotPanics(t, func() {
		forms.RecordCreated("x")
		forms.RecordTransition("a", "b")
		forms.RecordOperation("op", nil, 0)
		subs.RecordAccepted(false, 0)
		subs.RecordRejected("invalid", 0)
		subs.RecordDeleted()
		ns.RecordPurge(1)
		ns.SetOpenDBs(1)
		gen.RecordRequest("refine", nil, 0)
		node.RecordAPIRequest("GET", "/", "200", 0)
	})
}
