// Package server contains the OTA server's business logic and process entry
// point.
//
// The Service orchestrates the build registry, artifact store, integrity
// service, next-build resolver and auth gate; Run assembles them from
// configuration and serves the HTTP API until shutdown.
package server
