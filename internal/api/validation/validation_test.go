package validation

import (
	"errors"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name   string `json:"name" validate:"required,max=10"`
	Status string `json:"status" validate:"omitempty,oneof=draft published"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"valid", `{"name":"ok","status":"draft"}`, ""},
		{"empty body", ``, "body"},
		{"malformed", `{"name":`, "body"},
		{"missing required", `{"status":"draft"}`, "name"},
		{"too long", `{"name":"abcdefghijklmnop"}`, "name"},
		{"bad enum", `{"name":"ok","status":"gone"}`, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			var dst sampleRequest
			err := DecodeJSON(req, &dst)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "ok", dst.Name)
				return
			}
			var verr RequestError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, InBody, verr.In)
			assert.Equal(t, tt.wantField, verr.Target())
		})
	}
}

func TestPagination(t *testing.T) {
	page, limit, err := Pagination(url.Values{})
	require.NoError(t, err)
	assert.Zero(t, page)
	assert.Zero(t, limit)

	page, limit, err = Pagination(url.Values{"page": {"3"}, "limit": {"50"}})
	require.NoError(t, err)
	assert.Equal(t, 3, page)
	assert.Equal(t, 50, limit)

	_, _, err = Pagination(url.Values{"page": {"zero"}})
	assert.IsType(t, RequestError{}, err)

	_, _, err = Pagination(url.Values{"limit": {"-1"}})
	assert.IsType(t, RequestError{}, err)
}

func TestBool(t *testing.T) {
	b, err := Bool(url.Values{"includeTest": {"true"}}, "includeTest")
	require.NoError(t, err)
	assert.True(t, b)

	b, err = Bool(url.Values{}, "includeTest")
	require.NoError(t, err)
	assert.False(t, b)

	_, err = Bool(url.Values{"includeTest": {"maybe"}}, "includeTest")
	assert.IsType(t, RequestError{}, err)
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("id", "0193f1c2-7a1e-7c3d-9f00-000000000001"))
	assert.Error(t, ValidateID("id", ""))
	assert.Error(t, ValidateID("id", "   "))
	assert.Error(t, ValidateID("id", "a/b"))
	assert.Error(t, ValidateID("id", strings.Repeat("x", MaxIDLength+1)))

	err := ValidateNonEmpty("name", "")
	assert.Equal(t, `invalid body "name": cannot be empty`, err.Error())

	err = ValidateID("formId", "a b")
	assert.Equal(t, `invalid path parameter "formId": contains invalid characters`, err.Error())

	_, err = Bool(url.Values{"includeTest": {"maybe"}}, "includeTest")
	assert.Equal(t, `invalid query parameter "includeTest": must be a boolean`, err.Error())

	err = MalformedBody(errors.New("unexpected EOF"))
	assert.Equal(t, "invalid request body: unexpected EOF", err.Error())
	assert.Equal(t, "body", err.(RequestError).Target())
}
