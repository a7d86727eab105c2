package namespace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/formai/engine/internal/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandle(t *testing.T) (*Handle, func()) {
	t.Helper()
	p, _, cleanup := setupProvisioner(t)
	h, err := p.DefineRecordShape(context.Background(), "f1", 1, sampleFields())
	require.NoError(t, err)
	return h, cleanup
}

func insertAt(t *testing.T, h *Handle, at time.Time, data map[string]any, isTest bool) *Record {
	t.Helper()
	rec := &Record{
		FormVersion: 1,
		Data:        data,
		IsTest:      isTest,
		Metadata:    Metadata{SubmittedAt: at},
	}
	require.NoError(t, h.Insert(context.Background(), rec))
	return rec
}

func TestInsert_Defaults(t *testing.T) {
	h, cleanup := setupHandle(t)
	defer cleanup()
	ctx := context.Background()

	rec := &Record{FormVersion: 1, Data: map[string]any{"full_name": "Ana", "age": float64(31)}}
	require.NoError(t, h.Insert(ctx, rec))

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "f1", rec.FormID)
	assert.Equal(t, StatusSubmitted, rec.Status)
	assert.Equal(t, SourceWeb, rec.Metadata.Source)
	assert.False(t, rec.Metadata.SubmittedAt.IsZero())

	got, err := h.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, 1, got.FormVersion)
	assert.Equal(t, "Ana", got.Data["full_name"])
	assert.Equal(t, float64(31), got.Data["age"])
	assert.True(t, rec.Metadata.SubmittedAt.Equal(got.Metadata.SubmittedAt))
}

func TestInsert_Rejects(t *testing.T) {
	h, cleanup := setupHandle(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		name string
		rec  *Record
	}{
		{"version zero", &Record{}},
		{"foreign form", &Record{FormID: "other", FormVersion: 1}},
		{"bad status", &Record{FormVersion: 1, Status: "archived"}},
		{"bad source", &Record{FormVersion: 1, Metadata: Metadata{Source: "fax"}}},
		{"negative file size", &Record{FormVersion: 1, Files: []File{{FieldID: "x", FileName: "a.pdf", URL: "/a", Size: -1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Insert(ctx, tt.rec)
			var invalid *InvalidRecordError
			assert.ErrorAs(t, err, &invalid)
		})
	}

	rec := &Record{FormVersion: 1}
	require.NoError(t, h.Insert(ctx, rec))
	dup := &Record{ID: rec.ID, FormVersion: 1}
	var invalid *InvalidRecordError
	assert.ErrorAs(t, h.Insert(ctx, dup), &invalid)
}

func TestGet_NotFound(t *testing.T) {
	h, cleanup := setupHandle(t)
	defer cleanup()

	_, err := h.Get(context.Background(), "nope")
	var notFound *RecordNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nope", notFound.RecordID)
	assert.Equal(t, h.ID(), notFound.Namespace)
}

func TestList_OrderAndPaging(t *testing.T) {
	h, cleanup := setupHandle(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 5; i++ {
		rec := insertAt(t, h, base.Add(time.Duration(i)*time.Hour), map[string]any{"n": i}, false)
		ids = append(ids, rec.ID)
	}
	insertAt(t, h, base.Add(10*time.Hour), map[string]any{"n": 99}, true)

	result, err := h.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, DefaultPage, result.Page)
	assert.Equal(t, DefaultLimit, result.Limit)
	require.Len(t, result.Records, 5)
	for i, rec := range result.Records {
		assert.Equal(t, ids[4-i], rec.ID, "newest first")
	}

	page2, err := h.List(ctx, ListOptions{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page2.Total)
	require.Len(t, page2.Records, 2)
	assert.Equal(t, ids[2], page2.Records[0].ID)
	assert.Equal(t, ids[1], page2.Records[1].ID)

	beyond, err := h.List(ctx, ListOptions{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond.Records)
	assert.Equal(t, 5, beyond.Total)

	withTest, err := h.List(ctx, ListOptions{IncludeTest: true})
	require.NoError(t, err)
	assert.Equal(t, 6, withTest.Total)
	assert.True(t, withTest.Records[0].IsTest)
}

func TestList_StatusAndFilter(t *testing.T) {
	h, cleanup := setupHandle(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := insertAt(t, h, base, map[string]any{"age": float64(20), "country": "FR"}, false)
	b := insertAt(t, h, base.Add(time.Minute), map[string]any{"age": float64(40), "country": "BE"}, false)
	insertAt(t, h, base.Add(2*time.Minute), map[string]any{"age": float64(60), "country": "FR"}, false)

	_, err := h.UpdateStatus(ctx, a.ID, StatusApproved)
	require.NoError(t, err)
	_, err = h.UpdateStatus(ctx, b.ID, StatusApproved)
	require.NoError(t, err)

	approved, err := h.List(ctx, ListOptions{Status: StatusApproved})
	require.NoError(t, err)
	require.Equal(t, 2, approved.Total)
	assert.Equal(t, b.ID, approved.Records[0].ID)
	assert.Equal(t, a.ID, approved.Records[1].ID)

	submitted, err := h.List(ctx, ListOptions{Status: StatusSubmitted})
	require.NoError(t, err)
	assert.Equal(t, 1, submitted.Total)

	filtered, err := h.List(ctx, ListOptions{Filter: `data.country == "FR" && data.age > 30`})
	require.NoError(t, err)
	require.Equal(t, 1, filtered.Total)
	assert.Equal(t, float64(60), filtered.Records[0].Data["age"])

	_, err = h.List(ctx, ListOptions{Filter: `data.age >`})
	assert.Error(t, err)

	_, err = h.List(ctx, ListOptions{Status: "lost"})
	var invalid *InvalidStatusError
	assert.ErrorAs(t, err, &invalid)
}

func TestUpdateStatus(t *testing.T) {
	h, cleanup := setupHandle(t)
	defer cleanup()
	ctx := context.Background()

	rec := insertAt(t, h, time.Now().UTC(), nil, false)

	updated, err := h.UpdateStatus(ctx, rec.ID, StatusReviewed)
	require.NoError(t, err)
	assert.Equal(t, StatusReviewed, updated.Status)

	got, err := h.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReviewed, got.Status)

	_, err = h.UpdateStatus(ctx, rec.ID, "pending")
	var invalid *InvalidStatusError
	assert.ErrorAs(t, err, &invalid)

	_, err = h.UpdateStatus(ctx, "missing", StatusApproved)
	var notFound *RecordNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestDelete(t *testing.T) {
	h, cleanup := setupHandle(t)
	defer cleanup()
	ctx := context.Background()

	rec := insertAt(t, h, time.Now().UTC(), nil, false)
	require.NoError(t, h.Delete(ctx, rec.ID))

	_, err := h.Get(ctx, rec.ID)
	var notFound *RecordNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.ErrorAs(t, h.Delete(ctx, rec.ID), &notFound)

	result, err := h.List(ctx, ListOptions{IncludeTest: true})
	require.NoError(t, err)
	assert.Zero(t, result.Total)
}

func TestScan(t *testing.T) {
	h, cleanup := setupHandle(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	first := insertAt(t, h, base, nil, false)
	second := insertAt(t, h, base.Add(time.Second), nil, true)

	var seen []string
	require.NoError(t, h.Scan(ctx, func(rec *Record) error {
		seen = append(seen, rec.ID)
		return nil
	}))
	assert.Equal(t, []string{second.ID, first.ID}, seen)

	stop := errors.New("stop")
	calls := 0
	err := h.Scan(ctx, func(rec *Record) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestInsert_Concurrent(t *testing.T) {
	h, cleanup := setupHandle(t)
	defer cleanup()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, h.Insert(ctx, &Record{FormVersion: 1, Data: map[string]any{"i": i}}))
		}(i)
	}
	wg.Wait()

	count, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}

func TestKeys(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Nanosecond)

	assert.Less(t, string(timeIndexKey(late, "a")), string(timeIndexKey(early, "a")))
	assert.Len(t, invertedTimestamp(early), invertedTSLength)
	assert.Equal(t, "abc", idFromIndexKey(timeIndexKey(early, "abc"), prefixTimeIndex))
	assert.Equal(t, "abc", idFromIndexKey(statusIndexKey(StatusApproved, early, "abc"), statusPrefix(StatusApproved)))
	assert.Equal(t, []byte("r0"), upperBound([]byte("r/")))
}

func TestList_InvalidFilter(t *testing.T) {
	h, cleanup := setupHandle(t)
	defer cleanup()

	_, err := h.List(context.Background(), ListOptions{Filter: `data.age >`})
	var filterErr *InvalidFilterError
	require.ErrorAs(t, err, &filterErr)
	assert.Equal(t, `data.age >`, filterErr.Expression)

	var syntaxErr *filter.SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Equal(t, 10, syntaxErr.Offset)
}
