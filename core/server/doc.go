// Package server holds the HTTP server configuration.
//
// The Config struct defines the HTTP port and the API key expected by the auth
// middleware. It is embedded by core/config and consumed by the start command.
package server
