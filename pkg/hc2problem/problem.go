// Package hc2problem defines the RFC-7807-shaped problem-detail JSON used
// by every HTTP-facing error response in the registry and gateway.
package hc2problem

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/hc2-project/hc2/pkg/utils"
)

// Detail is a problem-detail document: {type, title, detail, instance}.
type Detail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	status   int
}

// Known problem types, named after the spec's own `/probs/...` URNs.
const (
	TypeCertInvalid       = "/probs/cert-invalid"
	TypeCertClaimsInvalid = "/probs/cert-claims-invalid"
	TypeStoreUnavailable  = "/probs/store-unavailable"
	TypeNotFound          = "/probs/not-found"
	TypeInternal          = "/probs/internal"
)

// New builds a Detail carrying the HTTP status it should be written with.
func New(status int, problemType, title, detail, instance string) *Detail {
	return &Detail{Type: problemType, Title: title, Detail: detail, Instance: instance, status: status}
}

// CertInvalid is the 403 returned when a certificate signature fails
// verification.
func CertInvalid(instance, detail string) *Detail {
	return New(http.StatusForbidden, TypeCertInvalid, "certificate signature is invalid", detail, instance)
}

// CertClaimsInvalid is the 401 returned when a registration's claims do
// not match its certificate.
func CertClaimsInvalid(instance, detail string) *Detail {
	return New(http.StatusUnauthorized, TypeCertClaimsInvalid, "registration claims do not match certificate", detail, instance)
}

// StoreUnavailable is the 503 returned when the durable store cannot be
// reached.
func StoreUnavailable(instance, detail string) *Detail {
	return New(http.StatusServiceUnavailable, TypeStoreUnavailable, "durable store unavailable", detail, instance)
}

// NotFound is the 404 returned for an unknown resource.
func NotFound(instance, detail string) *Detail {
	return New(http.StatusNotFound, TypeNotFound, "resource not found", detail, instance)
}

// Internal is the 500 returned for an unclassified server error.
func Internal(instance, detail string) *Detail {
	return New(http.StatusInternalServerError, TypeInternal, "internal error", detail, instance)
}

// Status reports the HTTP status code this problem should be served with.
func (d *Detail) Status() int {
	if d.status == 0 {
		return http.StatusInternalServerError
	}
	return d.status
}

// Write serializes the problem as application/problem+json with the
// matching status code, logging it at warn (4xx) or error (5xx) level.
func (d *Detail) Write(w http.ResponseWriter, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	status := d.Status()
	fields := []zap.Field{
		zap.String("type", d.Type),
		zap.Int("status", status),
		zap.String("instance", d.Instance),
	}
	if status >= 500 {
		log.Error(d.Title, append(fields, zap.String("detail", d.Detail))...)
	} else {
		log.Warn(d.Title, append(fields, zap.String("detail", d.Detail))...)
	}

	buf := utils.GetBuffer()
	defer utils.PutBuffer(buf)
	if err := json.NewEncoder(buf).Encode(d); err != nil {
		log.Error("failed to encode problem detail", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
