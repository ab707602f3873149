package main

import (
	"net/http"
)

// DataLoaderMiddleware creates middleware that injects dataloaders into the request context
func DataLoaderMiddleware(profiles ProfileStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Create new dataloaders for each request to ensure freshness
			dataloaders := NewDataLoaders(profiles)
			ctx := WithDataLoaders(r.Context(), dataloaders)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
