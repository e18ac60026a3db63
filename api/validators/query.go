package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
)

func fieldError(field, msg string, extra ...any) error {
	details := map[string]any{"field": field}
	for i := 0; i+1 < len(extra); i += 2 {
		details[extra[i].(string)] = extra[i+1]
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

// queryParam parses ?key= with parse, returning fallback when it is absent.
func queryParam[T any](r *http.Request, key string, fallback T, parse func(string) (T, error), msg string) (T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := parse(raw)
	if err != nil {
		var zero T
		return zero, fieldError(key, msg)
	}
	return v, nil
}

// ParseQueryInt reads an integer in [min, max].
func ParseQueryInt(r *http.Request, key string, fallback, min, max int) (int, error) {
	v, err := queryParam(r, key, fallback, strconv.Atoi, "query parameter must be numeric")
	if err != nil {
		return 0, err
	}
	if v < min || v > max {
		return 0, fieldError(key, "query parameter out of range", "min", min, "max", max)
	}
	return v, nil
}

func ParseQueryBool(r *http.Request, key string) (bool, error) {
	return queryParam(r, key, false, strconv.ParseBool, "query parameter must be a boolean")
}

// ParseURLUUID reads a chi path parameter as a uuid.
func ParseURLUUID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, param)))
	if err != nil {
		return uuid.Nil, fieldError(param, "invalid identifier")
	}
	return id, nil
}
