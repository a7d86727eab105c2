package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes bounds request bodies
const MaxBodyBytes = 4 << 20

var structs = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON decodes a JSON request body into dst and validates its struct tags
func DecodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return bodyError("", "request body is empty")
		}
		return bodyError("", fmt.Sprintf("invalid JSON: %v", err))
	}
	return Struct(dst)
}

// Struct validates the struct tags of v, reporting the first failing field
func Struct(v any) error {
	if err := structs.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return bodyError(fieldPath(fe.Namespace()), describe(fe))
		}
		return MalformedBody(err)
	}
	return nil
}

// Pagination reads the page and limit query parameters; zero means default
func Pagination(q url.Values) (page, limit int, err error) {
	if page, err = optionalInt(q, "page"); err != nil {
		return 0, 0, err
	}
	if limit, err = optionalInt(q, "limit"); err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

// Bool reads an optional boolean query parameter
func Bool(q url.Values, name string) (bool, error) {
	raw := q.Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, queryError(name, "must be a boolean")
	}
	return b, nil
}

func optionalInt(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, queryError(name, "must be a positive integer")
	}
	return n, nil
}

func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return fmt.Sprintf("failed %q constraint", fe.Tag())
}
