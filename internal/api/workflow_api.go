package api

import (
	"fmt"
	"net/http"
	"time"

	"ezbiz/internal/booking"
	"ezbiz/internal/metrics"
	"ezbiz/internal/recurrence"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// WorkflowInputRequest is one user action. Type selects which of the other
// fields are read.
type WorkflowInputRequest struct {
	Type        string   `json:"type"`
	CustomerID  int64    `json:"customer_id,omitempty"`
	AddressID   int64    `json:"address_id,omitempty"`
	Service     string   `json:"service,omitempty"`
	AddOns      []string `json:"add_ons,omitempty"`
	Date        string   `json:"date,omitempty"`
	StartTime   string   `json:"start_time,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	Occurrences int      `json:"occurrences,omitempty"`
	Comment     string   `json:"comment,omitempty"`
}

// StepResponse describes what the next screen should show.
type StepResponse struct {
	State           booking.State     `json:"state"`
	DurationMinutes int               `json:"duration_minutes,omitempty"`
	Slots           []string          `json:"slots,omitempty"`
	Accepted        []string          `json:"accepted,omitempty"`
	Skipped         []SkippedDate     `json:"skipped,omitempty"`
	SeriesID        string            `json:"series_id,omitempty"`
	Bookings        []BookingResponse `json:"bookings,omitempty"`
}

type WorkflowResponse struct {
	Workflow booking.Workflow `json:"workflow"`
	Step     *StepResponse    `json:"step,omitempty"`
}

// handleCreateWorkflow starts a booking workflow.
// POST /api/workflows
func (s *HTTPServer) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_workflow")
	wf := s.drafts.Create()
	writeJSON(w, r, http.StatusCreated, WorkflowResponse{Workflow: wf})
}

// handleGetWorkflow returns the current snapshot of a workflow.
// GET /api/workflows/{id}
func (s *HTTPServer) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_workflow")
	wf, ok := s.drafts.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "not_found", "workflow not found or expired")
		return
	}
	writeJSON(w, r, http.StatusOK, WorkflowResponse{Workflow: wf})
}

// handleWorkflowInput applies one input to a workflow.
// POST /api/workflows/{id}/input
func (s *HTTPServer) handleWorkflowInput(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("workflow_input")

	wf, ok := s.drafts.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "not_found", "workflow not found or expired")
		return
	}

	var body WorkflowInputRequest
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	in, err := s.toInput(body)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	next, step, err := s.flow.Apply(r.Context(), wf, in)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	next = s.drafts.Save(next)

	writeJSON(w, r, http.StatusOK, WorkflowResponse{Workflow: next, Step: toStepResponse(step)})
}

func (s *HTTPServer) toInput(body WorkflowInputRequest) (booking.Input, error) {
	switch body.Type {
	case "address_selected":
		return booking.AddressSelected{CustomerID: body.CustomerID, AddressID: body.AddressID}, nil
	case "services_selected":
		return booking.ServicesSelected{Service: body.Service, AddOns: body.AddOns}, nil
	case "date_selected":
		d, err := s.parseDate(body.Date)
		if err != nil {
			return nil, err
		}
		return booking.DateSelected{Date: d}, nil
	case "options_selected":
		return booking.OptionsSelected{
			Start:       body.StartTime,
			Pattern:     recurrence.Pattern(body.Pattern),
			Occurrences: body.Occurrences,
			Comment:     body.Comment,
		}, nil
	case "confirmed":
		return booking.Confirmed{}, nil
	case "back":
		return booking.Back{}, nil
	case "cancel":
		return booking.Cancel{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown input type %q", errBadRequest, body.Type)
	}
}

func toStepResponse(step booking.Step) *StepResponse {
	resp := &StepResponse{
		State:           step.State,
		DurationMinutes: step.DurationMinutes,
		SeriesID:        step.SeriesID,
	}
	if len(step.Slots) > 0 {
		resp.Slots = clocks(step.Slots)
	}
	if step.Plan != nil {
		resp.Accepted = make([]string, 0, len(step.Plan.Accepted))
		for _, d := range step.Plan.Accepted {
			resp.Accepted = append(resp.Accepted, d.Format(time.DateOnly))
		}
		resp.Skipped = skippedDates(step.Plan.Skipped)
	}
	if len(step.Skipped) > 0 {
		resp.Skipped = skippedDates(step.Skipped)
	}
	if len(step.Bookings) > 0 {
		resp.Bookings = toBookingResponses(step.Bookings)
	}
	return resp
}
