package shared

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/sentinel"
	"employeehub/internal/transport/http/api"
)

// ValidID reports whether raw is a canonical hyphenated UUID.
func ValidID(raw string) bool {
	if len(raw) != 36 {
		return false
	}
	_, err := uuid.Parse(raw)
	return err == nil
}

// IDParam reads a UUID path parameter. A malformed id is answered like a
// missing row and never reaches the store: 404 for the all scope, 403 for
// callers limited to own or reports.
func IDParam(w http.ResponseWriter, r *http.Request, caller scope.Caller, name, requestID string) (string, bool) {
	id := chi.URLParam(r, name)
	if ValidID(id) {
		return id, true
	}
	err := sentinel.ErrNotFound
	if caller.Scope != scope.ScopeAll {
		err = sentinel.ErrForbidden
	}
	api.FailError(w, r, fmt.Errorf("%s %q: %w", name, id, err), requestID)
	return "", false
}

// PathID reads a UUID path parameter for rows outside any data scope, such
// as courses. A malformed id is a 404 for every caller.
func PathID(w http.ResponseWriter, r *http.Request, name, requestID string) (string, bool) {
	return IDParam(w, r, scope.Caller{Scope: scope.ScopeAll}, name, requestID)
}

// EmployeeParam reads the {employeeID} path parameter.
func EmployeeParam(w http.ResponseWriter, r *http.Request, caller scope.Caller, requestID string) (string, bool) {
	return IDParam(w, r, caller, "employeeID", requestID)
}

// ID flags a non-empty value that is not a UUID.
func (v *Validator) ID(field, raw string) {
	if raw != "" && !ValidID(raw) {
		v.Add(field, "must be a valid id")
	}
}
