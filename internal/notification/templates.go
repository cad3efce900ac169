package notification

import (
	"fmt"
	"html/template"
	"strings"
)

type templateData struct {
	ClientName  string
	Date        string
	Time        string
	ServiceType string
	VetName     string
	Reason      string
}

const baseLayout = `<!DOCTYPE html>
<html>
<head>
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
  .container { max-width: 600px; margin: 0 auto; padding: 20px; }
  .header { background: {{.Color}}; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
  .content { background: #f9f9f9; padding: 20px; border-radius: 0 0 8px 8px; }
  .details { background: white; padding: 15px; margin: 20px 0; border-left: 4px solid {{.Color}}; }
  .footer { text-align: center; margin-top: 20px; color: #666; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
  <div class="header"><h1>PROVETCARE</h1></div>
  <div class="content">
    {{.Body}}
    <div class="footer">
      <p>PROVETCARE - Sistema de Citas Veterinarias</p>
      <p>Este es un correo autom&aacute;tico, por favor no responder.</p>
    </div>
  </div>
</div>
</body>
</html>`

var layoutTmpl = template.Must(template.New("layout").Parse(baseLayout))

const detailsBlock = `<div class="details">
<ul>
  <li><strong>Fecha:</strong> {{.Date}}</li>
  <li><strong>Hora:</strong> {{.Time}}</li>
  <li><strong>Servicio:</strong> {{.ServiceType}}</li>
</ul>
</div>`

var bodyTemplates = map[Event]*template.Template{
	EventAppointmentRequested: template.Must(template.New("requested").Parse(`
<h2>Solicitud Recibida</h2>
<p>Hola <strong>{{.ClientName}}</strong>,</p>
<p>Hemos recibido tu solicitud de cita veterinaria. Estamos procesando tu petici&oacute;n.</p>
` + detailsBlock + `
<p>Un veterinario revisar&aacute; tu solicitud pronto y te notificaremos sobre el estado de tu cita.</p>`)),

	EventAppointmentUnderReview: template.Must(template.New("under_review").Parse(`
<h2>Tu Cita Est&aacute; Siendo Revisada</h2>
<p>Hola <strong>{{.ClientName}}</strong>,</p>
<p>Un veterinario especialista est&aacute; revisando tu solicitud de cita en este momento.</p>
` + detailsBlock + `
<p>Te notificaremos pronto si tu cita es confirmada o si necesitamos que selecciones otra fecha u hora.</p>`)),

	EventAppointmentConfirmedClient: template.Must(template.New("confirmed_client").Parse(`
<h2>Cita Confirmada</h2>
<p>Hola <strong>{{.ClientName}}</strong>,</p>
<p>Tu cita ha sido confirmada. Te esperamos en nuestra cl&iacute;nica.</p>
` + detailsBlock + `
<p>Si necesitas reagendar, cont&aacute;ctanos con anticipaci&oacute;n.</p>`)),

	EventAppointmentConfirmedFollowUp: template.Must(template.New("confirmed_followup").Parse(`
<h2>Cita de Control Programada</h2>
<p>Hola <strong>{{.ClientName}}</strong>,</p>
<p>El Dr(a). <strong>{{.VetName}}</strong> ha programado una cita de control para tu mascota.</p>
` + detailsBlock + `
<p>Esta cita fue agendada directamente por tu veterinario y ya est&aacute; confirmada.</p>`)),

	EventAppointmentRejected: template.Must(template.New("rejected").Parse(`
<h2>Cita No Disponible</h2>
<p>Hola <strong>{{.ClientName}}</strong>,</p>
<p>Lamentablemente no pudimos confirmar tu cita en el horario solicitado.</p>
` + detailsBlock + `
{{if .Reason}}<p><strong>Motivo:</strong> {{.Reason}}</p>{{end}}
<p>Por favor ingresa a la plataforma y selecciona otra fecha u hora disponible.</p>`)),
}

var subjects = map[Event]string{
	EventAppointmentRequested:         "Solicitud de Cita Recibida - PROVETCARE",
	EventAppointmentUnderReview:       "Tu Cita Está en Revisión - PROVETCARE",
	EventAppointmentConfirmedClient:   "Cita Confirmada - PROVETCARE",
	EventAppointmentConfirmedFollowUp: "Cita de Control Programada - PROVETCARE",
	EventAppointmentRejected:          "Cita No Disponible - PROVETCARE",
}

var headerColors = map[Event]string{
	EventAppointmentRequested:         "#3b82f6",
	EventAppointmentUnderReview:       "#f59e0b",
	EventAppointmentConfirmedClient:   "#10b981",
	EventAppointmentConfirmedFollowUp: "#10b981",
	EventAppointmentRejected:          "#ef4444",
}

func renderEmail(event Event, data templateData) (subject, body string, err error) {
	bodyTmpl, ok := bodyTemplates[event]
	if !ok {
		return "", "", fmt.Errorf("no template for event %s", event)
	}

	var inner strings.Builder
	if err := bodyTmpl.Execute(&inner, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", event, err)
	}

	var full strings.Builder
	layoutData := struct {
		Color string
		Body  template.HTML
	}{
		Color: headerColors[event],
		Body:  template.HTML(inner.String()),
	}
	if err := layoutTmpl.Execute(&full, layoutData); err != nil {
		return "", "", fmt.Errorf("render %s layout: %w", event, err)
	}

	return subjects[event], full.String(), nil
}
