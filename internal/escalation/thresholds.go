package escalation

import (
	"fmt"

	"github.com/fleetops/maintenance-service/internal/domain"
)

// Open-ticket limits per installation.
const (
	OrdinaryFaultLimit    = 15
	EquipmentFaultLimit   = 5
	OperationalFaultLimit = 1
)

// CriticalReport lists the breached thresholds of one installation. A category's
// ticket list is empty unless its threshold was breached.
type CriticalReport struct {
	Conditions        []string
	OrdinaryFaults    []domain.MaintenanceTicket
	EquipmentFaults   []domain.MaintenanceTicket
	OperationalFaults []domain.MaintenanceTicket
}

// Breached reports whether any condition was met.
func (r CriticalReport) Breached() bool {
	return len(r.Conditions) > 0
}

// Tickets returns every ticket attached to the report.
func (r CriticalReport) Tickets() []domain.MaintenanceTicket {
	out := make([]domain.MaintenanceTicket, 0, len(r.OrdinaryFaults)+len(r.EquipmentFaults)+len(r.OperationalFaults))
	out = append(out, r.OrdinaryFaults...)
	out = append(out, r.EquipmentFaults...)
	return append(out, r.OperationalFaults...)
}

// EvaluateCriticalConditions counts open tickets by fault type against the fixed limits.
// Completed and cancelled tickets are ignored; custom fault types never trigger.
func EvaluateCriticalConditions(tickets []domain.MaintenanceTicket) CriticalReport {
	var ordinary, equipment, operational []domain.MaintenanceTicket
	for _, t := range tickets {
		if t.Status.IsTerminal() {
			continue
		}
		switch t.FaultType {
		case domain.FaultTypeOrdinary:
			ordinary = append(ordinary, t)
		case domain.FaultTypeEquipment:
			equipment = append(equipment, t)
		case domain.FaultTypeOperational:
			operational = append(operational, t)
		}
	}

	report := CriticalReport{
		Conditions:        []string{},
		OrdinaryFaults:    []domain.MaintenanceTicket{},
		EquipmentFaults:   []domain.MaintenanceTicket{},
		OperationalFaults: []domain.MaintenanceTicket{},
	}
	if len(ordinary) >= OrdinaryFaultLimit {
		report.Conditions = append(report.Conditions, fmt.Sprintf(
			"Fallas ordinarias: Se ha superado el límite de %d fallas, registrándose un total de %d.",
			OrdinaryFaultLimit, len(ordinary)))
		report.OrdinaryFaults = ordinary
	}
	if len(equipment) >= EquipmentFaultLimit {
		report.Conditions = append(report.Conditions, fmt.Sprintf(
			"Fallas de equipo: Se ha superado el límite de %d fallas, registrándose un total de %d.",
			EquipmentFaultLimit, len(equipment)))
		report.EquipmentFaults = equipment
	}
	if len(operational) >= OperationalFaultLimit {
		report.Conditions = append(report.Conditions, fmt.Sprintf(
			"Fallas operativas: Se ha superado el límite de %d falla, registrándose un total de %d.",
			OperationalFaultLimit, len(operational)))
		report.OperationalFaults = operational
	}
	return report
}
