package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// Dispatcher maps a lifecycle event to a rendered email and hands it to the
// mail transport. It holds no state of its own and must never be the reason a
// calling operation fails: every failure mode is folded into the Outcome.
type Dispatcher struct {
	mailer Mailer
	log    zerolog.Logger
}

// NewDispatcher builds a dispatcher. A nil mailer puts the dispatcher in
// simulated mode: events are logged and recorded as simulated deliveries, so
// the lifecycle engine stays operable without mail credentials.
func NewDispatcher(mailer Mailer, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{mailer: mailer, log: log}
}

// Notify renders and delivers the email for event, best-effort. Unknown
// events are logged and treated as a no-op success.
func (d *Dispatcher) Notify(ctx context.Context, event Event, appt AppointmentInfo, client Recipient, meta Meta) Outcome {
	switch event {
	case EventAppointmentRequested,
		EventAppointmentUnderReview,
		EventAppointmentConfirmedClient,
		EventAppointmentConfirmedFollowUp,
		EventAppointmentRejected:
		// recognized, fall through to delivery
	default:
		d.log.Warn().Stringer("event", event).Msg("unrecognized notification event, skipping")
		return Outcome{}
	}

	data := templateData{
		ClientName:  client.Name,
		Date:        appt.Date.Format("02/01/2006"),
		Time:        appt.Time,
		ServiceType: appt.ServiceType,
		VetName:     meta.VetName,
		Reason:      meta.Reason,
	}

	subject, body, err := renderEmail(event, data)
	if err != nil {
		d.log.Error().Err(err).Stringer("event", event).Msg("render notification email")
		return Outcome{Attempted: true, Error: err.Error()}
	}

	if d.mailer == nil {
		d.log.Info().
			Stringer("event", event).
			Str("to", client.Email).
			Str("subject", subject).
			Msg("email simulated (mail not configured)")
		return Outcome{Attempted: true, Delivered: false, Simulated: true}
	}

	if err := d.mailer.Send(ctx, client.Email, subject, body); err != nil {
		d.log.Error().Err(err).
			Stringer("event", event).
			Str("to", client.Email).
			Msg("email delivery failed")
		return Outcome{Attempted: true, Error: err.Error()}
	}

	d.log.Info().
		Stringer("event", event).
		Str("to", client.Email).
		Msg("email delivered")
	return Outcome{Attempted: true, Delivered: true}
}
