package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/provetcare/clinic-server/internal/appointment"
	"github.com/provetcare/clinic-server/internal/billing"
	"github.com/provetcare/clinic-server/internal/notification"
)

type RequestAppointmentRequest struct {
	PetID           string `json:"pet_id"`
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	ServiceType     string `json:"service_type"`
	Notes           string `json:"notes"`
}

type FollowUpRequest struct {
	PetID           string `json:"pet_id"`
	ClientID        string `json:"client_id"`
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	ServiceType     string `json:"service_type"`
	Notes           string `json:"notes"`
}

type ChangeStatusRequest struct {
	Status     string  `json:"status"`
	AdminNotes *string `json:"admin_notes,omitempty"`
}

type AppointmentResponse struct {
	ID             uuid.UUID  `json:"id"`
	PetID          uuid.UUID  `json:"pet_id"`
	ClientID       uuid.UUID  `json:"client_id"`
	Date           string     `json:"appointment_date"`
	Time           string     `json:"appointment_time"`
	ServiceType    string     `json:"service_type"`
	Notes          string     `json:"notes,omitempty"`
	AdminNotes     string     `json:"admin_notes,omitempty"`
	Status         string     `json:"status"`
	StaffInitiated bool       `json:"staff_initiated"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type NotificationResponse struct {
	EmailSent  bool   `json:"email_sent"`
	Simulated  bool   `json:"simulated,omitempty"`
	EmailError string `json:"email_error,omitempty"`
}

type MutationResponse struct {
	Appointment  AppointmentResponse   `json:"appointment"`
	NextStep     string                `json:"next_step,omitempty"`
	Notification *NotificationResponse `json:"notification,omitempty"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	ClientName  string  `json:"client_name"`
	ClientEmail string  `json:"client_email"`
	ClientPhone *string `json:"client_phone,omitempty"`
	PetName     string  `json:"pet_name"`
	PetSpecies  string  `json:"pet_species"`
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentDetailResponse `json:"appointments"`
	Count        int                         `json:"count"`
}

type PrescriptionItemRequest struct {
	InventoryItemID string          `json:"inventory_item_id"`
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	Dosage          string          `json:"dosage"`
	Duration        string          `json:"duration"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
}

type IssuePrescriptionRequest struct {
	AppointmentID string                    `json:"appointment_id"`
	PetID         string                    `json:"pet_id"`
	Instructions  string                    `json:"instructions"`
	Items         []PrescriptionItemRequest `json:"items"`
}

type IssuePrescriptionResponse struct {
	PrescriptionID uuid.UUID `json:"prescription_id"`
	InvoiceID      uuid.UUID `json:"invoice_id"`
}

type InvoiceResponse struct {
	ID            uuid.UUID       `json:"id"`
	AppointmentID uuid.UUID       `json:"appointment_id"`
	ClientID      uuid.UUID       `json:"client_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

type InvoiceItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ItemType    string          `json:"item_type"`
	ItemID      uuid.UUID       `json:"item_id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type InvoiceDetailResponse struct {
	InvoiceResponse
	Items []InvoiceItemResponse `json:"items"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		PetID:          a.PetID,
		ClientID:       a.ClientID,
		Date:           a.Date.Format("2006-01-02"),
		Time:           a.Time,
		ServiceType:    a.ServiceType,
		Notes:          a.Notes,
		AdminNotes:     a.AdminNotes,
		Status:         string(a.Status),
		StaffInitiated: a.StaffInitiated(),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toNotificationResponse(o notification.Outcome) *NotificationResponse {
	if !o.Attempted {
		return nil
	}
	return &NotificationResponse{
		EmailSent:  o.Delivered,
		Simulated:  o.Simulated,
		EmailError: o.Error,
	}
}

func toInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:            inv.ID,
		AppointmentID: inv.AppointmentID,
		ClientID:      inv.ClientID,
		TotalAmount:   inv.TotalAmount,
		Status:        inv.Status,
		CreatedAt:     inv.CreatedAt,
	}
}
