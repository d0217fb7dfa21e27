package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"budgetbook/internal/core"
	"budgetbook/internal/log"
)

// HeaderOwnerID names the principal every request acts for.
const HeaderOwnerID = "X-Owner-ID"

const maxBodyBytes = 1 << 20

type ctxKey string

const ownerKey ctxKey = "owner"

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind core.ErrorKind) int {
	switch kind {
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindInvalidSpec, core.KindInvalidInput, core.KindCycleWouldForm, core.KindHorizonExceeded:
		return http.StatusUnprocessableEntity
	case core.KindConflict:
		return http.StatusConflict
	case core.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.NewFields().WithError(err).WithOperation(r.Method+" "+r.URL.Path).ToSlice()...)
		kind = core.KindInternal
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: string(kind), Message: msg}})
}

// badRequest reports a malformed request (not a domain validation failure).
func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
		Kind:    string(core.KindInvalidInput),
		Message: fmt.Sprintf(format, args...),
	}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			badRequest(w, "empty request body")
		} else {
			badRequest(w, "invalid JSON body: %v", err)
		}
		return false
	}
	return true
}

// requireOwner rejects requests without an owner header.
func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(HeaderOwnerID))
		if owner == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{
				Kind:    string(core.KindInvalidInput),
				Message: "missing " + HeaderOwnerID + " header",
			}})
			return
		}
		ctx := r.Context()
		logger := log.FromContext(ctx).With(log.FieldOwnerID, owner)
		ctx = context.WithValue(ctx, log.LoggerContextKey, logger)
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, ownerKey, core.OwnerID(owner))))
	})
}

func ownerFrom(r *http.Request) core.OwnerID {
	owner, _ := r.Context().Value(ownerKey).(core.OwnerID)
	return owner
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "invalid id %q", raw)
		return 0, false
	}
	return id, true
}

// queryParams collects the first parse failure of a series of reads.
type queryParams struct {
	r   *http.Request
	err error
}

func (q *queryParams) str(name string) string {
	return strings.TrimSpace(q.r.URL.Query().Get(name))
}

func (q *queryParams) date(name string) core.Date {
	v := q.str(name)
	if v == "" || q.err != nil {
		return core.Date{}
	}
	d, err := core.ParseDate(v)
	if err != nil {
		q.err = fmt.Errorf("invalid %s %q: want YYYY-MM-DD", name, v)
	}
	return d
}

func (q *queryParams) id(name string) int64 {
	v := q.str(name)
	if v == "" || q.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		q.err = fmt.Errorf("invalid %s %q", name, v)
	}
	return n
}

func (q *queryParams) num(name string) int {
	return int(q.id(name))
}

func (q *queryParams) numPtr(name string) *int {
	if q.str(name) == "" {
		return nil
	}
	n := q.num(name)
	return &n
}

func (q *queryParams) boolean(name string) bool {
	v := q.str(name)
	if v == "" || q.err != nil {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.err = fmt.Errorf("invalid %s %q", name, v)
	}
	return b
}

func (q *queryParams) kind(name string) core.Kind {
	v := q.str(name)
	if v == "" || q.err != nil {
		return core.KindUnknown
	}
	k, err := core.ParseKind(v)
	if err != nil {
		q.err = err
	}
	return k
}

func (q *queryParams) status(name string) core.Status {
	v := q.str(name)
	if v == "" || q.err != nil {
		return core.StatusUnknown
	}
	s, err := core.ParseStatus(v)
	if err != nil {
		q.err = err
	}
	return s
}
