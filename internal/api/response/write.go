package response

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// JSON writes data as the response body with the given status. A nil body
// sends headers only.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// Created writes a 201 whose Location points at the new resource
func Created(w http.ResponseWriter, data any, segments ...string) {
	if len(segments) > 0 {
		w.Header().Set("Location", Location(segments...))
	}
	JSON(w, http.StatusCreated, data)
}

// Location builds an /api/v1 path with each segment escaped
func Location(segments ...string) string {
	var b strings.Builder
	b.WriteString("/api/v1")
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// NoContent writes a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
