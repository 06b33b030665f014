// Package export writes ticket listings to spreadsheet files for email attachments.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/fleetops/maintenance-service/internal/domain"
	"github.com/fleetops/maintenance-service/internal/escalation"
)

// Sheet names.
const (
	SheetAboutToExpire = "75% Plazo cumplido"
	SheetExpired       = "Plazo finalizado"
	SheetSummary       = "Resumen"
	SheetOrdinary      = "Fallas Ordinarias"
	SheetEquipment     = "Fallas de Equipo"
	SheetOperational   = "Fallas Operativas"
)

var columns = []string{
	"Folio", "Equipo", "Sistema", "Tipo de Falla", "Fecha de Ingreso", "Instalación",
	"Responsable", "Estado", "Días Falla", "Fecha Estimada", "Enlace",
}

// Generator writes report workbooks and returns their path. Callers remove the file.
type Generator interface {
	DeadlineWorkbook(tickets []escalation.ClassifiedTicket, now time.Time) (string, error)
	CriticalWorkbook(installation string, report escalation.CriticalReport, now time.Time) (string, error)
}

// LinkFunc builds the URL of a ticket.
type LinkFunc func(ticketID int64) string

// XLSXGenerator writes .xlsx files into dir, each under a unique name.
type XLSXGenerator struct {
	dir  string
	link LinkFunc
	loc  *time.Location
}

// NewXLSXGenerator builds a generator. An empty dir uses the OS temp directory.
func NewXLSXGenerator(dir string, link LinkFunc, loc *time.Location) (*XLSXGenerator, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &XLSXGenerator{dir: dir, link: link, loc: loc}, nil
}

// DeadlineWorkbook splits flagged tickets by progress: below 100% on the first
// sheet, 100% and above on the second.
func (g *XLSXGenerator) DeadlineWorkbook(tickets []escalation.ClassifiedTicket, now time.Time) (string, error) {
	var partial, finished []domain.MaintenanceTicket
	for _, t := range tickets {
		if t.ProgressPercentage >= 100 {
			finished = append(finished, t.MaintenanceTicket)
		} else {
			partial = append(partial, t.MaintenanceTicket)
		}
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetAboutToExpire); err != nil {
		return "", err
	}
	if err := g.writeTickets(f, SheetAboutToExpire, partial, now); err != nil {
		return "", err
	}
	if _, err := f.NewSheet(SheetExpired); err != nil {
		return "", err
	}
	if err := g.writeTickets(f, SheetExpired, finished, now); err != nil {
		return "", err
	}
	return g.save(f, "plazos-solucion")
}

// CriticalWorkbook writes a summary sheet with the breached conditions and one
// sheet per breached fault category.
func (g *XLSXGenerator) CriticalWorkbook(installation string, report escalation.CriticalReport, now time.Time) (string, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return "", err
	}
	if err := f.SetCellValue(SheetSummary, "A1", "Instalación"); err != nil {
		return "", err
	}
	if err := f.SetCellValue(SheetSummary, "B1", installation); err != nil {
		return "", err
	}
	if err := f.SetCellValue(SheetSummary, "A2", "Fecha"); err != nil {
		return "", err
	}
	if err := f.SetCellValue(SheetSummary, "B2", escalation.FormatSheetDate(now, g.loc)); err != nil {
		return "", err
	}
	for i, c := range report.Conditions {
		cell, _ := excelize.CoordinatesToCellName(1, i+4)
		if err := f.SetCellValue(SheetSummary, cell, c); err != nil {
			return "", err
		}
	}
	if err := f.SetColWidth(SheetSummary, "A", "A", 90); err != nil {
		return "", err
	}

	categories := []struct {
		sheet   string
		tickets []domain.MaintenanceTicket
	}{
		{SheetOrdinary, report.OrdinaryFaults},
		{SheetEquipment, report.EquipmentFaults},
		{SheetOperational, report.OperationalFaults},
	}
	for _, c := range categories {
		if len(c.tickets) == 0 {
			continue
		}
		if _, err := f.NewSheet(c.sheet); err != nil {
			return "", err
		}
		if err := g.writeTickets(f, c.sheet, c.tickets, now); err != nil {
			return "", err
		}
	}
	return g.save(f, "condiciones-criticas")
}

func (g *XLSXGenerator) writeTickets(f *excelize.File, sheet string, tickets []domain.MaintenanceTicket, now time.Time) error {
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"263674"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "K", 20); err != nil {
		return err
	}

	for i, t := range tickets {
		row := i + 2
		estimate := ""
		if est, ok := t.CurrentEstimate(); ok {
			estimate = escalation.FormatSheetDate(est.Date, g.loc)
		}
		values := []any{
			t.Folio,
			t.EquipmentName,
			t.EquipmentSubarea,
			string(t.FaultType),
			escalation.FormatSheetDate(t.CreatedAt, g.loc),
			t.InstallationName,
			t.ResponsibleName,
			t.Status.Label(),
			escalation.FailureDays(t.CreatedAt, now),
			estimate,
			"Ver solicitud",
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, start, &values); err != nil {
			return err
		}
		if g.link != nil {
			cell, _ := excelize.CoordinatesToCellName(len(columns), row)
			if err := f.SetCellHyperLink(sheet, cell, g.link(t.ID), "External"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *XLSXGenerator) save(f *excelize.File, prefix string) (string, error) {
	path := filepath.Join(g.dir, fmt.Sprintf("%s-%s.xlsx", prefix, uuid.NewString()))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}
