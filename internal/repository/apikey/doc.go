// Package apikey implements persistence for the API key set.
//
// The FileRepository stores key names and secrets as a single JSON document
// and exposes a Repository interface that the auth gate depends on.
package apikey
