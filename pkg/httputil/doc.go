// Package httputil provides HTTP utilities for standardized
// request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, mothers)
//	httputil.WriteCreated(w, mother)
//	httputil.WriteForbidden(w, "permission denied")
//	httputil.WriteConflict(w, "mother is not at the required stage")
//
// # Request Parsing
//
//	var req createMotherRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	motherID, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	kind := httputil.ParseQueryString(r, "kind", "")
//	limit, _ := httputil.ParseQueryInt(r, "limit", 100)
//
// # Middleware
//
//	router.Use(httputil.RecoveryMiddleware)
//	router.Use(httputil.RequestIDMiddleware)
//
// Authentication and permission middleware lives in pkg/middleware;
// this package only carries concerns with no domain knowledge.
package httputil
