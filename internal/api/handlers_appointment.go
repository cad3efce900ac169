package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/provetcare/clinic-server/internal/appointment"
)

func requestAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := GetPrincipal(r.Context())

		var req RequestAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		petID, err := uuid.Parse(req.PetID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pet_id", "pet_id must be a valid UUID")
			return
		}

		date, err := time.Parse("2006-01-02", req.AppointmentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "appointment_date must be YYYY-MM-DD")
			return
		}

		if req.AppointmentTime == "" || req.ServiceType == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "appointment_time and service_type are required")
			return
		}

		result, err := svc.RequestAppointment(r.Context(), appointment.RequestInput{
			PetID:       petID,
			ClientID:    principal.ID,
			Date:        date,
			Time:        req.AppointmentTime,
			ServiceType: req.ServiceType,
			Notes:       req.Notes,
		})
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, MutationResponse{
			Appointment:  toAppointmentResponse(result.Appointment),
			NextStep:     result.NextStep,
			Notification: toNotificationResponse(result.Notification),
		})
	}
}

func createFollowUpHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := GetPrincipal(r.Context())

		var req FollowUpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		petID, err := uuid.Parse(req.PetID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pet_id", "pet_id must be a valid UUID")
			return
		}

		clientID, err := uuid.Parse(req.ClientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
			return
		}

		date, err := time.Parse("2006-01-02", req.AppointmentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "appointment_date must be YYYY-MM-DD")
			return
		}

		result, err := svc.CreateFollowUp(r.Context(), appointment.FollowUpInput{
			PetID:       petID,
			ClientID:    clientID,
			StaffID:     principal.ID,
			Date:        date,
			Time:        req.AppointmentTime,
			ServiceType: req.ServiceType,
			Notes:       req.Notes,
		})
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, MutationResponse{
			Appointment:  toAppointmentResponse(result.Appointment),
			Notification: toNotificationResponse(result.Notification),
		})
	}
}

func markUnderReviewHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		result, err := svc.MarkUnderReview(r.Context(), id)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, MutationResponse{
			Appointment:  toAppointmentResponse(result.Appointment),
			Notification: toNotificationResponse(result.Notification),
		})
	}
}

func changeStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req ChangeStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		result, err := svc.ChangeStatus(r.Context(), id, appointment.Status(req.Status), req.AdminNotes)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, MutationResponse{
			Appointment:  toAppointmentResponse(result.Appointment),
			Notification: toNotificationResponse(result.Notification),
		})
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := GetPrincipal(r.Context())

		var filter appointment.ListFilter

		if s := r.URL.Query().Get("status"); s != "" {
			status := appointment.Status(s)
			if !appointment.ValidStatus(status) {
				writeError(w, http.StatusBadRequest, "invalid_status", "unrecognized status filter")
				return
			}
			filter.Status = &status
		}

		if d := r.URL.Query().Get("date"); d != "" {
			date, err := time.Parse("2006-01-02", d)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			filter.Date = &date
		}

		details, err := svc.ListAppointments(r.Context(), filter, principal.Role, principal.ID)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toListResponse(details))
	}
}

func listPendingAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := GetPrincipal(r.Context())

		status := appointment.StatusPending
		details, err := svc.ListAppointments(r.Context(), appointment.ListFilter{Status: &status},
			principal.Role, principal.ID)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toListResponse(details))
	}
}

func toListResponse(details []appointment.Detail) ListAppointmentsResponse {
	appointments := make([]AppointmentDetailResponse, len(details))
	for i, d := range details {
		appointments[i] = AppointmentDetailResponse{
			AppointmentResponse: toAppointmentResponse(&d.Appointment),
			ClientName:          d.ClientName,
			ClientEmail:         d.ClientEmail,
			ClientPhone:         d.ClientPhone,
			PetName:             d.PetName,
			PetSpecies:          d.PetSpecies,
		}
	}
	return ListAppointmentsResponse{
		Appointments: appointments,
		Count:        len(appointments),
	}
}

func handleAppointmentError(w http.ResponseWriter, err error) {
	var transitionErr *appointment.InvalidTransitionError
	var stateErr *appointment.InvalidStateError

	switch {
	case errors.As(err, &transitionErr):
		allowed := make([]string, len(transitionErr.Allowed))
		for i, s := range transitionErr.Allowed {
			allowed[i] = string(s)
		}
		writeJSON(w, http.StatusConflict, TransitionErrorResponse{
			Error:              "invalid_state_transition",
			Details:            transitionErr.Error(),
			CurrentStatus:      string(transitionErr.Current),
			RequestedStatus:    string(transitionErr.Requested),
			AllowedTransitions: allowed,
		})
	case errors.As(err, &stateErr):
		writeJSON(w, http.StatusConflict, TransitionErrorResponse{
			Error:              "invalid_state",
			Details:            stateErr.Error(),
			CurrentStatus:      string(stateErr.Current),
			AllowedTransitions: []string{},
		})
	case errors.Is(err, appointment.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "you are not allowed to schedule for this pet")
	case errors.Is(err, appointment.ErrClientNotFound):
		writeError(w, http.StatusNotFound, "client_not_found", err.Error())
	case errors.Is(err, appointment.ErrPetNotFound):
		writeError(w, http.StatusNotFound, "pet_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
