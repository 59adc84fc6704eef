// Package respond holds the JSON response helpers shared by every
// service's HTTP handlers. It imports nothing from the rest of the
// module, so handler packages on both sides of the store/warehouse RPC
// boundary can use it without pulling each other in.
package respond

import (
	"encoding/json"
	"net/http"
)

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, map[string]string{"error": msg})
}
