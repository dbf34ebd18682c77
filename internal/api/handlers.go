package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fixmate/technician-scheduling/internal/directory"
	"github.com/fixmate/technician-scheduling/internal/geo"
	"github.com/fixmate/technician-scheduling/internal/schedule"
)

func createAppointmentHandler(engine *schedule.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		clientID, err := uuid.Parse(req.ClientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
			return
		}
		technicianID, err := uuid.Parse(req.TechnicianID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_technician_id", "technician_id must be a valid UUID")
			return
		}

		in := schedule.CreateInput{
			ClientID:     clientID,
			TechnicianID: technicianID,
			Slot: schedule.TimeSlot{
				Start:           req.ScheduledStart,
				DurationMinutes: req.DurationMinutes,
			},
			Notes: req.Notes,
		}
		if req.NeedID != nil {
			needID, err := uuid.Parse(*req.NeedID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_need_id", "need_id must be a valid UUID")
				return
			}
			in.NeedID = &needID
		}
		if req.Location != nil {
			in.Location = &schedule.Location{
				Address:   req.Location.Address,
				Latitude:  req.Location.Latitude,
				Longitude: req.Location.Longitude,
			}
		}

		appt, err := engine.Create(r.Context(), in)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, appointmentToResponse(appt))
	}
}

func getAppointmentHandler(engine *schedule.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := engine.GetByID(r.Context(), id)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentToResponse(appt))
	}
}

func listAppointmentsHandler(engine *schedule.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		var (
			appts []schedule.Appointment
			err   error
		)
		switch {
		case q.Get("client_id") != "":
			clientID, perr := uuid.Parse(q.Get("client_id"))
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
				return
			}
			appts, err = engine.ListByClient(r.Context(), clientID, limit, offset)
		case q.Get("technician_id") != "":
			technicianID, perr := uuid.Parse(q.Get("technician_id"))
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid_technician_id", "technician_id must be a valid UUID")
				return
			}
			appts, err = engine.ListByTechnician(r.Context(), technicianID, limit, offset)
		default:
			writeError(w, http.StatusBadRequest, "missing_filter", "client_id or technician_id is required")
			return
		}
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentsToResponse(appts, originFromQuery(q)))
	}
}

func listUpcomingHandler(engine *schedule.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		technicianID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		appts, err := engine.ListUpcoming(r.Context(), technicianID, limit)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentsToResponse(appts, originFromQuery(r.URL.Query())))
	}
}

func listByMonthHandler(engine *schedule.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		technicianID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		year, err := strconv.Atoi(r.URL.Query().Get("year"))
		if err != nil || year < 1 {
			writeError(w, http.StatusBadRequest, "invalid_year", "year must be a positive integer")
			return
		}
		month, err := strconv.Atoi(r.URL.Query().Get("month"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_month", "month must be between 1 and 12")
			return
		}

		appts, err := engine.ListByMonth(r.Context(), technicianID, year, time.Month(month))
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentsToResponse(appts, originFromQuery(r.URL.Query())))
	}
}

func rescheduleAppointmentHandler(engine *schedule.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		actorID, err := uuid.Parse(req.ActorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_actor_id", "actor_id must be a valid UUID")
			return
		}

		appt, err := engine.Reschedule(r.Context(), id, actorID, schedule.TimeSlot{
			Start:           req.ScheduledStart,
			DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentToResponse(appt))
	}
}

// transitionHandler builds one handler per lifecycle action; the route path
// names the action and the body names the actor.
func transitionHandler(engine *schedule.Engine, action schedule.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		actorID, err := uuid.Parse(req.ActorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_actor_id", "actor_id must be a valid UUID")
			return
		}
		role := schedule.Role(req.ActorRole)
		if role != schedule.RoleClient && role != schedule.RoleTechnician {
			writeError(w, http.StatusBadRequest, "invalid_actor_role", "actor_role must be client or technician")
			return
		}

		appt, err := engine.Transition(r.Context(), id, actorID, role, action)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentToResponse(appt))
	}
}

func cancelAppointmentHandler(engine *schedule.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req CancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		actorID, err := uuid.Parse(req.ActorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_actor_id", "actor_id must be a valid UUID")
			return
		}

		appt, err := engine.Cancel(r.Context(), id, actorID, req.Reason)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentToResponse(appt))
	}
}

// originFromQuery reads optional lat/lng query params used to annotate list
// responses with the distance to each appointment.
func originFromQuery(q map[string][]string) *geo.Coordinates {
	get := func(key string) (float64, bool) {
		vals, ok := q[key]
		if !ok || len(vals) == 0 {
			return 0, false
		}
		f, err := strconv.ParseFloat(vals[0], 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}

	lat, okLat := get("lat")
	lng, okLng := get("lng")
	if !okLat || !okLng {
		return nil
	}
	return &geo.Coordinates{Latitude: lat, Longitude: lng}
}

func appointmentsToResponse(appts []schedule.Appointment, origin *geo.Coordinates) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		resp := appointmentToResponse(&appts[i])
		if origin != nil && appts[i].Location != nil {
			km := geo.Distance(*origin, geo.Coordinates{
				Latitude:  appts[i].Location.Latitude,
				Longitude: appts[i].Location.Longitude,
			})
			resp.DistanceKm = &km
		}
		out = append(out, resp)
	}
	return out
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func handleScheduleError(w http.ResponseWriter, err error) {
	var (
		validationErr *schedule.ValidationError
		conflictErr   *schedule.ConflictError
		transitionErr *schedule.InvalidTransitionError
	)
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_error", validationErr.Error())
	case errors.As(err, &conflictErr):
		writeError(w, http.StatusConflict, "scheduling_conflict", conflictErr.Error())
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusConflict, "invalid_transition", transitionErr.Error())
	case errors.Is(err, schedule.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, directory.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, schedule.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, schedule.ErrTechnicianBusy),
		errors.Is(err, schedule.ErrAppointmentBusy):
		writeError(w, http.StatusConflict, "try_again", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
