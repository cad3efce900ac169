package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/provetcare/clinic-server/internal/billing"
)

func issuePrescriptionHandler(svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := GetPrincipal(r.Context())

		var req IssuePrescriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appointmentID, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
			return
		}

		petID, err := uuid.Parse(req.PetID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pet_id", "pet_id must be a valid UUID")
			return
		}

		items := make([]billing.LineItem, len(req.Items))
		for i, item := range req.Items {
			invItemID, err := uuid.Parse(item.InventoryItemID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_inventory_item_id", "inventory_item_id must be a valid UUID")
				return
			}
			items[i] = billing.LineItem{
				InventoryItemID: invItemID,
				Name:            item.Name,
				Quantity:        item.Quantity,
				Dosage:          item.Dosage,
				Duration:        item.Duration,
				UnitPrice:       item.UnitPrice,
			}
		}

		result, err := svc.IssuePrescription(r.Context(), billing.IssueInput{
			AppointmentID: appointmentID,
			PetID:         petID,
			VetID:         principal.ID,
			Instructions:  req.Instructions,
			Items:         items,
		})
		if err != nil {
			handleBillingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, IssuePrescriptionResponse{
			PrescriptionID: result.PrescriptionID,
			InvoiceID:      result.InvoiceID,
		})
	}
}

func listInvoicesHandler(svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := GetPrincipal(r.Context())

		// Clients see their own invoices; staff may inspect any client's.
		clientID := principal.ID
		if q := r.URL.Query().Get("client_id"); q != "" {
			if !principal.Role.Staff() {
				writeError(w, http.StatusForbidden, "forbidden", "clients may only list their own invoices")
				return
			}
			id, err := uuid.Parse(q)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
				return
			}
			clientID = id
		}

		invoices, err := svc.ListInvoicesForClient(r.Context(), clientID)
		if err != nil {
			handleBillingError(w, err)
			return
		}

		out := make([]InvoiceResponse, len(invoices))
		for i := range invoices {
			out[i] = toInvoiceResponse(&invoices[i])
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"invoices": out,
			"count":    len(out),
		})
	}
}

func getInvoiceHandler(svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := GetPrincipal(r.Context())

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_invoice_id", "id must be a valid UUID")
			return
		}

		inv, items, err := svc.GetInvoice(r.Context(), id)
		if err != nil {
			handleBillingError(w, err)
			return
		}

		if !principal.Role.Staff() && inv.ClientID != principal.ID {
			writeError(w, http.StatusForbidden, "forbidden", "this invoice belongs to another client")
			return
		}

		resp := InvoiceDetailResponse{
			InvoiceResponse: toInvoiceResponse(inv),
			Items:           make([]InvoiceItemResponse, len(items)),
		}
		for i, item := range items {
			resp.Items[i] = InvoiceItemResponse{
				ID:          item.ID,
				ItemType:    item.ItemType,
				ItemID:      item.ItemID,
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				LineTotal:   item.LineTotal(),
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func handleBillingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrNoItems),
		errors.Is(err, billing.ErrInvalidQuantity),
		errors.Is(err, billing.ErrNegativePrice):
		writeError(w, http.StatusBadRequest, "invalid_items", err.Error())
	case errors.Is(err, billing.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, billing.ErrInvoiceNotFound):
		writeError(w, http.StatusNotFound, "invoice_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
