// Package rest implements the HTTP API: passkey registration and
// authentication ceremonies, session cookies, and the form management and
// public submission endpoints.
package rest
