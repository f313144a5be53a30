// Package middleware provides HTTP middleware for the tutor API.
package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS returns middleware that handles CORS headers. Credentials are only
// allowed for explicit origins; a "*" entry disables them.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	credentials := true
	for _, o := range allowedOrigins {
		if o == "*" {
			credentials = false
			break
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: credentials,
	})
	return c.Handler
}
