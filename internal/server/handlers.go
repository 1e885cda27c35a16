package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Afrawles/capledger/internal/capacity"
	"github.com/go-playground/validator/v10"
)

type windowRequest struct {
	Start string `json:"start" validate:"required,datetime=2006-01-02"`
	End   string `json:"end" validate:"required,datetime=2006-01-02"`
}

func (w windowRequest) window() (capacity.Window, error) {
	window, err := capacity.ParseWindow(w.Start, w.End)
	if err != nil {
		return window, err
	}
	return window, window.Validate()
}

type ledgerRequest struct {
	Window      windowRequest            `json:"window"`
	Tasks       []capacity.Task          `json:"tasks"`
	Overrides   map[string]windowRequest `json:"overrides" validate:"dive"`
	Roster      []string                 `json:"roster" validate:"dive,required"`
	HoursPerDay int                      `json:"hours_per_day" validate:"omitempty,min=1,max=24"`
}

type summaryResponse struct {
	Window capacity.Window        `json:"window"`
	Global capacity.Summary       `json:"global"`
	Teams  []capacity.TeamSummary `json:"teams"`
}

func (s *Server) handleHealth(writer http.ResponseWriter, request *http.Request) {
	s.responses.Respond(writer, map[string]string{"status": "ok"})
}

func (s *Server) handleLedger(writer http.ResponseWriter, request *http.Request) {
	ledger, ok := s.ledgerFromSources(writer, request)
	if !ok {
		return
	}
	s.responses.Respond(writer, ledger)
}

func (s *Server) handleSummary(writer http.ResponseWriter, request *http.Request) {
	ledger, ok := s.ledgerFromSources(writer, request)
	if !ok {
		return
	}
	s.responses.Respond(writer, summaryResponse{
		Window: ledger.Window,
		Global: ledger.Global(),
		Teams:  ledger.ByTeam(),
	})
}

// handleComputeLedger computes a ledger from the tasks in the request body
// without touching the configured sources.
func (s *Server) handleComputeLedger(writer http.ResponseWriter, request *http.Request) {
	var body ledgerRequest
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		s.responses.RespondWithError(writer, http.StatusBadRequest, "Wrong format", err)
		return
	}

	if err := s.validate.Struct(body); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			s.responses.RespondWithError(writer, http.StatusBadRequest, verrs[0].Error(), verrs[0])
			return
		}
		s.responses.RespondWithError(writer, http.StatusBadRequest, "Invalid request", err)
		return
	}

	window, err := body.Window.window()
	if err != nil {
		s.responses.RespondWithError(writer, http.StatusBadRequest, "Invalid window", err)
		return
	}

	overrides := make(map[string]capacity.Window, len(body.Overrides))
	for name, w := range body.Overrides {
		override, err := w.window()
		if err != nil {
			s.responses.RespondWithError(writer, http.StatusBadRequest, "Invalid override window for "+name, err)
			return
		}
		overrides[name] = override
	}

	ledger := s.calculator(body.HoursPerDay, overrides, body.Roster).Compute(body.Tasks, window)
	s.responses.Respond(writer, ledger)
}

func (s *Server) ledgerFromSources(writer http.ResponseWriter, request *http.Request) (*capacity.Ledger, bool) {
	query := request.URL.Query()

	window := s.config.DefaultWindow()
	if query.Get("start") != "" || query.Get("end") != "" {
		var err error
		window, err = windowRequest{Start: query.Get("start"), End: query.Get("end")}.window()
		if err != nil {
			s.responses.RespondWithError(writer, http.StatusBadRequest, "Invalid window", err)
			return nil, false
		}
	}

	refresh, _ := strconv.ParseBool(query.Get("refresh"))
	tasks, err := s.tasks(request.Context(), window, refresh)
	if err != nil {
		s.responses.RespondWithError(writer, http.StatusBadGateway, "Fetching tasks from sources failed", err)
		return nil, false
	}

	ledger := s.calculator(0, nil, nil).Compute(tasks, window)
	for _, a := range ledger.Anomalies {
		s.logger.Warn("task data anomaly", "task", a.TaskID, "assignee", a.Assignee, "kind", string(a.Kind))
	}
	return ledger, true
}
