package handler

import "net/http"

// Capabilities reports which optional executors are loaded.
type Capabilities interface {
	PythonAvailable() bool
}

type healthResponse struct {
	Status string `json:"status"`
	Python bool   `json:"python"`
}

// HandleHealth reports liveness and whether Python runs are possible.
//
// HTTP: GET /health
func HandleHealth(caps Capabilities) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status: "ok",
			Python: caps != nil && caps.PythonAvailable(),
		})
	}
}
