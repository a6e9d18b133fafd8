// Package http implements the JSON HTTP API of the OTA server.
//
// Device-facing endpoints (update checks, checksum validation, package
// download) and the admin endpoints (build upsert/delete, API key
// management) all sit behind a bearer-credential middleware. Response shapes
// are part of the device wire contract.
package http
