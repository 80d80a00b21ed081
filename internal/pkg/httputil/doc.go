// Package httputil writes JSON bodies and the coded error envelope shared
// by the API and webhook handlers.
package httputil
