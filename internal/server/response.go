package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ResponseManager writes JSON responses and errors.
type ResponseManager struct {
	Logger *slog.Logger
}

// RespondWithError returns an error to the client and logs server-side
// failures.
func (r *ResponseManager) RespondWithError(writer http.ResponseWriter, status int, message string, err error) {
	if status >= 500 {
		r.Logger.Error(message, "status", status, "error", err)
	}

	var response = map[string]any{
		"status": status,
		"error": map[string]any{
			"message": message,
		},
	}

	if err != nil {
		response["err"] = err.Error()
	}

	r.write(writer, response, status)
}

// Respond turns i into JSON and responds with a 200 status.
func (r *ResponseManager) Respond(writer http.ResponseWriter, i any) {
	r.RespondWithStatus(writer, i, http.StatusOK)
}

func (r *ResponseManager) RespondWithStatus(writer http.ResponseWriter, i any, status int) {
	binary, err := json.Marshal(i)
	if err != nil {
		r.RespondWithError(writer, http.StatusInternalServerError,
			"Problem while marshalling response into json", err)
		return
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if _, err := writer.Write(binary); err != nil {
		r.Logger.Warn("writing response failed", "error", err)
	}
}

func (r *ResponseManager) write(writer http.ResponseWriter, response map[string]any, status int) {
	binary, err := json.Marshal(response)
	if err != nil {
		r.Logger.Error("marshalling error response failed", "error", err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if _, err := writer.Write(binary); err != nil {
		r.Logger.Warn("writing response failed", "error", err)
	}
}
