// Package api exposes the operator surface over HTTP.
//
// Every route under /api/v1 past the auth endpoints requires a Bearer
// token. Handlers stay thin: permission questions go to the adminview
// panels and the perms checker, transitions go to the pipeline
// service, and the handlers translate between JSON and those calls.
package api
