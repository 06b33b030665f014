package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/fleetops/maintenance-service/internal/domain"
	"github.com/fleetops/maintenance-service/internal/escalation"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageDeadline   = "deadline.html"
	pageCritical   = "critical.html"
	pageNewRequest = "new_request.html"
	pageCompletion = "completion.html"
)

// Renderer builds report messages. The recipient is filled in by Dispatch.
type Renderer struct {
	baseURL string
	loc     *time.Location
	pages   map[string]*template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer(baseURL string, loc *time.Location) (*Renderer, error) {
	if loc == nil {
		loc = time.UTC
	}
	r := &Renderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		loc:     loc,
		pages:   make(map[string]*template.Template),
	}
	for _, page := range []string{pageDeadline, pageCritical, pageNewRequest, pageCompletion} {
		tpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		r.pages[page] = tpl
	}
	return r, nil
}

// TicketURL links to the ticket detail page.
func (r *Renderer) TicketURL(id int64) string {
	return fmt.Sprintf("%s/dashboard/mantencion/solicitudes/%d", r.baseURL, id)
}

// Location is the timezone used for dates in subjects and bodies.
func (r *Renderer) Location() *time.Location {
	return r.loc
}

// DeadlineReport renders the deadline alert. An empty department renders the global report.
func (r *Renderer) DeadlineReport(department domain.Department, aboutToExpire, expired int, now time.Time) (Message, error) {
	subject := "Alerta Plazo de Solución " + escalation.FormatSubjectDate(now, r.loc)
	if department != "" {
		subject = fmt.Sprintf("Alerta Plazo de Solución para Área %s %s", department, escalation.FormatSubjectDate(now, r.loc))
	}
	html, err := r.render(pageDeadline, map[string]any{
		"Title":         "Alerta Plazo de Solución",
		"Department":    string(department),
		"AboutToExpire": aboutToExpire,
		"Expired":       expired,
	})
	return Message{Subject: subject, HTML: html}, err
}

type conditionLine struct {
	Category string
	Detail   string
}

// CriticalReport renders the critical conditions alert for one installation.
func (r *Renderer) CriticalReport(installation string, conditions []string, now time.Time) (Message, error) {
	lines := make([]conditionLine, 0, len(conditions))
	for _, c := range conditions {
		category, detail, ok := strings.Cut(c, ":")
		if !ok {
			lines = append(lines, conditionLine{Detail: c})
			continue
		}
		lines = append(lines, conditionLine{Category: category + ":", Detail: detail})
	}
	html, err := r.render(pageCritical, map[string]any{
		"Title":        "Alerta Condiciones Críticas",
		"Installation": installation,
		"Conditions":   lines,
	})
	subject := fmt.Sprintf("Alerta Condiciones Críticas Instalación %s %s.", installation, escalation.FormatSubjectDate(now, r.loc))
	return Message{Subject: subject, HTML: html}, err
}

// NewRequest renders the intake email. A department addresses the area head
// instead of the responsible party.
func (r *Renderer) NewRequest(ticket *domain.MaintenanceTicket, department domain.Department, now time.Time) (Message, error) {
	subject := "Nuevo Requerimiento de Mantención " + escalation.FormatSubjectDate(now, r.loc)
	title := "Requerimiento de Mantención"
	if department != "" {
		subject = fmt.Sprintf("Nuevo Requerimiento de Mantención Área %s %s", department, escalation.FormatSubjectDate(now, r.loc))
		title = "Solicitud de Mantención Recibida"
	}
	data := r.ticketData(ticket)
	data["Title"] = title
	data["Department"] = string(department)
	html, err := r.render(pageNewRequest, data)
	return Message{Subject: subject, HTML: html}, err
}

// Completion renders the completion notice sent to the area head.
func (r *Renderer) Completion(ticket *domain.MaintenanceTicket, department domain.Department, now time.Time) (Message, error) {
	completed := now
	if ticket.RealSolution != nil {
		completed = *ticket.RealSolution
	}
	data := r.ticketData(ticket)
	data["Title"] = "Solicitud de Mantención Completada"
	data["CreatedDate"] = escalation.FormatSheetDate(ticket.CreatedAt, r.loc)
	data["CompletedDate"] = escalation.FormatSheetDate(completed, r.loc)
	data["FailureDays"] = escalation.FailureDays(ticket.CreatedAt, completed)
	html, err := r.render(pageCompletion, data)
	subject := fmt.Sprintf("Solicitud de Mantención Completada Área %s %s", department, escalation.FormatSubjectDate(now, r.loc))
	return Message{Subject: subject, HTML: html}, err
}

func (r *Renderer) ticketData(ticket *domain.MaintenanceTicket) map[string]any {
	return map[string]any{
		"Folio":        ticket.Folio,
		"Responsible":  orDefault(ticket.ResponsibleName, "No especificado"),
		"Equipment":    orDefault(ticket.EquipmentName, "No especificado"),
		"Installation": orDefault(ticket.InstallationName, "No especificada"),
		"Description":  orDefault(ticket.Description, "No especificada"),
		"Link":         r.TicketURL(ticket.ID),
	}
}

func (r *Renderer) render(page string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", page, err)
	}
	return buf.String(), nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
