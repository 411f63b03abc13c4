// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package gateway

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tenantgate/internal/logging"
	"github.com/tomtom215/tenantgate/internal/policy"
)

// errorBody is the JSON shape for gateway error responses.
type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeJSON serializes a response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write response body")
	}
}

// writeTenantNotFound answers requests for unknown subdomains. The body
// is deliberately uniform: it reveals only that no such school exists,
// never whether the subdomain is close to a real one.
func writeTenantNotFound(w http.ResponseWriter, key string) {
	_ = key // logged upstream; never echoed back
	writeJSON(w, http.StatusNotFound, errorBody{
		Error: "school not found",
	})
}

// writeForbidden answers denied requests.
func writeForbidden(w http.ResponseWriter, decision policy.Decision) {
	reason := "forbidden"
	if decision == policy.DenyCrossTenant {
		reason = "cross-tenant access denied"
	} else if decision == policy.DenyRolePolicy {
		reason = "role not permitted for this route"
	}
	writeJSON(w, http.StatusForbidden, errorBody{
		Error:  "forbidden",
		Reason: reason,
	})
}

// writeUnavailable answers requests the gateway cannot decide because a
// collaborator is down. Fails closed with a retryable status.
func writeUnavailable(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, errorBody{
		Error: "temporarily unavailable",
	})
}
