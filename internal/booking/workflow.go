package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"ezbiz/internal/availability"
	"ezbiz/internal/events"
	"ezbiz/internal/metrics"
	"ezbiz/internal/model"
	"ezbiz/internal/recurrence"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidTransition = errors.New("input not accepted in the current step")
	ErrInvalidInput      = errors.New("invalid workflow input")
)

// Draft is the data collected so far by a workflow.
type Draft struct {
	CustomerID      int64              `json:"customer_id,omitempty"`
	AddressID       int64              `json:"address_id,omitempty"`
	Service         string             `json:"service,omitempty"`
	AddOns          []string           `json:"add_ons,omitempty"`
	DurationMinutes int                `json:"duration_minutes,omitempty"`
	Date            time.Time          `json:"date,omitzero"`
	Start           time.Time          `json:"start,omitzero"`
	Pattern         recurrence.Pattern `json:"pattern,omitempty"`
	Occurrences     int                `json:"occurrences,omitempty"`
	Comment         string             `json:"comment,omitempty"`
}

func (d Draft) request() Request {
	return Request{
		CustomerID:      d.CustomerID,
		AddressID:       d.AddressID,
		Service:         d.Service,
		AddOns:          d.AddOns,
		Start:           d.Start,
		DurationMinutes: d.DurationMinutes,
		Comment:         d.Comment,
	}
}

// Workflow is an immutable snapshot of one booking dialog. Apply returns a new
// value instead of changing the one passed in.
type Workflow struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Draft     Draft     `json:"draft"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWorkflow starts a workflow at address selection.
func NewWorkflow(id string) Workflow {
	return Workflow{ID: id, State: StateSelectingAddress}
}

// Input is one user action. Implementations are the value types below.
type Input interface {
	isInput()
}

type AddressSelected struct {
	CustomerID int64
	AddressID  int64
}

type ServicesSelected struct {
	Service string
	AddOns  []string
}

type DateSelected struct {
	Date time.Time
}

// OptionsSelected picks the start time and, optionally, a recurrence.
// Occurrences caps the series; zero means the default time horizon only.
type OptionsSelected struct {
	Start       string
	Pattern     recurrence.Pattern
	Occurrences int
	Comment     string
}

type Confirmed struct{}

type Back struct{}

type Cancel struct{}

func (AddressSelected) isInput()  {}
func (ServicesSelected) isInput() {}
func (DateSelected) isInput()     {}
func (OptionsSelected) isInput()  {}
func (Confirmed) isInput()        {}
func (Back) isInput()             {}
func (Cancel) isInput()           {}

// TransitionEvent is the payload of events.WorkflowTransition.
type TransitionEvent struct {
	WorkflowID string `json:"workflow_id"`
	From       State  `json:"from"`
	To         State  `json:"to"`
}

// Step is what the next screen needs after a transition.
type Step struct {
	State           State                  `json:"state"`
	DurationMinutes int                    `json:"duration_minutes,omitempty"`
	Slots           []time.Time            `json:"slots,omitempty"`
	Plan            *availability.Plan     `json:"plan,omitempty"`
	SeriesID        string                 `json:"series_id,omitempty"`
	Bookings        []model.Booking        `json:"bookings,omitempty"`
	Skipped         []availability.Skipped `json:"skipped,omitempty"`
}

// Flow applies inputs to workflows.
type Flow struct {
	fsm     *FSM
	engine  *availability.Engine
	service *Service
	logger  zerolog.Logger
}

func NewFlow(engine *availability.Engine, service *Service, logger zerolog.Logger) *Flow {
	return &Flow{
		fsm:     NewFSM(),
		engine:  engine,
		service: service,
		logger:  logger.With().Str("component", "workflow").Logger(),
	}
}

// Apply processes in against w. On error the returned workflow equals w and
// the step describes the unchanged state.
func (f *Flow) Apply(ctx context.Context, w Workflow, in Input) (Workflow, Step, error) {
	next, step, err := f.apply(ctx, w, in)
	if err != nil {
		return w, Step{State: w.State, DurationMinutes: w.Draft.DurationMinutes}, err
	}

	next.UpdatedAt = f.service.opts.Now()
	step.State = next.State
	metrics.IncWorkflowTransition(string(w.State), string(next.State))
	f.logger.Debug().Str("workflow_id", w.ID).Str("from", string(w.State)).Str("to", string(next.State)).Msg("transition")
	f.service.publish(events.WorkflowTransition, TransitionEvent{WorkflowID: w.ID, From: w.State, To: next.State})
	return next, step, nil
}

func (f *Flow) apply(ctx context.Context, w Workflow, in Input) (Workflow, Step, error) {
	if w.State.Terminal() {
		return w, Step{}, fmt.Errorf("%w: workflow is %s", ErrInvalidTransition, w.State)
	}

	switch in := in.(type) {
	case AddressSelected:
		return f.selectAddress(w, in)
	case ServicesSelected:
		return f.selectServices(ctx, w, in)
	case DateSelected:
		return f.selectDate(ctx, w, in)
	case OptionsSelected:
		return f.selectOptions(ctx, w, in)
	case Confirmed:
		return f.confirm(ctx, w)
	case Back:
		prev, ok := f.fsm.Previous(w.State)
		if !ok {
			return w, Step{}, fmt.Errorf("%w: nothing before %s", ErrInvalidTransition, w.State)
		}
		w.State = prev
		return w, Step{DurationMinutes: w.Draft.DurationMinutes}, nil
	case Cancel:
		w.State = StateCanceled
		return w, Step{}, nil
	default:
		return w, Step{}, fmt.Errorf("%w: unsupported input %T", ErrInvalidInput, in)
	}
}

func (f *Flow) move(w Workflow, from, to State) (Workflow, error) {
	if w.State != from || !f.fsm.CanTransition(from, to) {
		return w, fmt.Errorf("%w: expected %s, workflow is %s", ErrInvalidTransition, from, w.State)
	}
	w.State = to
	return w, nil
}

func (f *Flow) selectAddress(w Workflow, in AddressSelected) (Workflow, Step, error) {
	next, err := f.move(w, StateSelectingAddress, StateSelectingService)
	if err != nil {
		return w, Step{}, err
	}
	if in.CustomerID <= 0 || in.AddressID <= 0 {
		return w, Step{}, fmt.Errorf("%w: customer and address are required", ErrInvalidInput)
	}

	next.Draft.CustomerID = in.CustomerID
	next.Draft.AddressID = in.AddressID
	return next, Step{}, nil
}

func (f *Flow) selectServices(ctx context.Context, w Workflow, in ServicesSelected) (Workflow, Step, error) {
	next, err := f.move(w, StateSelectingService, StateSelectingDate)
	if err != nil {
		return w, Step{}, err
	}
	if in.Service == "" {
		return w, Step{}, fmt.Errorf("%w: select a service", ErrInvalidInput)
	}

	addOns := slices.Clone(in.AddOns)
	duration, err := f.engine.DurationFor(ctx, append([]string{in.Service}, addOns...))
	if err != nil {
		return w, Step{}, err
	}

	next.Draft.Service = in.Service
	next.Draft.AddOns = addOns
	next.Draft.DurationMinutes = duration
	return next, Step{DurationMinutes: duration}, nil
}

func (f *Flow) selectDate(ctx context.Context, w Workflow, in DateSelected) (Workflow, Step, error) {
	next, err := f.move(w, StateSelectingDate, StateSelectingOptions)
	if err != nil {
		return w, Step{}, err
	}

	now := f.service.opts.Now()
	date := model.DateOf(in.Date)
	if in.Date.IsZero() || date.Before(model.DateOf(now)) {
		return w, Step{}, fmt.Errorf("%w: pick today or a later date", ErrInvalidInput)
	}

	slots, err := f.engine.GetAvailableSlots(ctx, date, w.Draft.DurationMinutes)
	if err != nil {
		return w, Step{}, err
	}
	slots = slices.DeleteFunc(slots, func(s time.Time) bool { return s.Before(now) })
	if len(slots) == 0 {
		return w, Step{}, fmt.Errorf("%s: %w", date.Format(time.DateOnly), availability.ErrNoAvailability)
	}

	next.Draft.Date = date
	return next, Step{DurationMinutes: w.Draft.DurationMinutes, Slots: slots}, nil
}

func (f *Flow) selectOptions(ctx context.Context, w Workflow, in OptionsSelected) (Workflow, Step, error) {
	next, err := f.move(w, StateSelectingOptions, StateConfirming)
	if err != nil {
		return w, Step{}, err
	}

	start, err := model.TimeOnDate(w.Draft.Date, in.Start)
	if err != nil {
		return w, Step{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if start.Before(f.service.opts.Now()) {
		return w, Step{}, fmt.Errorf("%w: start %s is in the past", ErrInvalidInput, in.Start)
	}

	res, err := f.engine.CheckAt(ctx, start, w.Draft.DurationMinutes)
	if err != nil {
		return w, Step{}, err
	}
	if !res.OK {
		return w, Step{}, res.Error()
	}

	next.Draft.Start = start
	next.Draft.Comment = in.Comment
	next.Draft.Pattern = ""
	next.Draft.Occurrences = 0

	step := Step{DurationMinutes: w.Draft.DurationMinutes}
	if in.Pattern != "" {
		pattern, err := recurrence.ParsePattern(string(in.Pattern))
		if err != nil {
			return w, Step{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		horizon, err := f.service.Horizon(start, in.Occurrences)
		if err != nil {
			return w, Step{}, err
		}
		plan, err := f.engine.PlanRecurring(ctx, start, w.Draft.DurationMinutes, pattern, horizon)
		if err != nil {
			return w, Step{}, err
		}
		next.Draft.Pattern = pattern
		next.Draft.Occurrences = in.Occurrences
		step.Plan = &plan
	}

	return next, step, nil
}

func (f *Flow) confirm(ctx context.Context, w Workflow) (Workflow, Step, error) {
	next, err := f.move(w, StateConfirming, StateCommitted)
	if err != nil {
		return w, Step{}, err
	}

	req := w.Draft.request()
	if w.Draft.Pattern == "" {
		b, err := f.service.Book(ctx, req)
		if err != nil {
			return w, Step{}, err
		}
		return next, Step{DurationMinutes: b.DurationMinutes, Bookings: []model.Booking{*b}}, nil
	}

	horizon, err := f.service.Horizon(req.Start, w.Draft.Occurrences)
	if err != nil {
		return w, Step{}, err
	}
	series, err := f.service.BookRecurring(ctx, req, w.Draft.Pattern, horizon)
	if err != nil {
		if series != nil {
			f.logger.Error().Err(err).
				Str("workflow_id", w.ID).
				Str("series_id", series.SeriesID).
				Int("booked", len(series.Bookings)).
				Msg("recurring series interrupted")
		}
		return w, Step{}, err
	}
	return next, Step{
		DurationMinutes: w.Draft.DurationMinutes,
		SeriesID:        series.SeriesID,
		Bookings:        series.Bookings,
		Skipped:         series.Skipped,
	}, nil
}
