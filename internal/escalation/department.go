package escalation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fleetops/maintenance-service/internal/domain"
)

// DepartmentResolver maps a responsible party's email to a department.
type DepartmentResolver interface {
	Resolve(email string) (domain.Department, bool)
}

type fragmentRule struct {
	department domain.Department
	fragments  []string
}

// FragmentResolver matches lower-cased email addresses against substrings.
// Rules are checked in domain.Departments order; the first match wins.
type FragmentResolver struct {
	rules []fragmentRule
}

// DefaultDepartmentFragments is the mailbox convention used by the maintenance staff.
func DefaultDepartmentFragments() map[domain.Department][]string {
	return map[domain.Department][]string{
		domain.DepartmentBahia: {"user_mantencion1", "user_mantencion2", "user_mantencion3"},
		domain.DepartmentFlota: {"user_mantencion4", "user_mantencion5", "user_mantencion6"},
	}
}

// ParseDepartmentFragments converts a name keyed override into a department
// mapping. Names must match a known department exactly.
func ParseDepartmentFragments(raw map[string][]string) (map[domain.Department][]string, error) {
	known := make(map[domain.Department]struct{}, len(domain.Departments))
	for _, dept := range domain.Departments {
		known[dept] = struct{}{}
	}
	var unknown []string
	mapping := make(map[domain.Department][]string, len(raw))
	for name, fragments := range raw {
		dept := domain.Department(name)
		if _, ok := known[dept]; !ok {
			unknown = append(unknown, name)
			continue
		}
		mapping[dept] = fragments
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown department %q, expected one of %v", strings.Join(unknown, ", "), domain.Departments)
	}
	return mapping, nil
}

// NewFragmentResolver builds a resolver from a department to fragments mapping.
// Departments missing from the mapping never match.
func NewFragmentResolver(mapping map[domain.Department][]string) *FragmentResolver {
	r := &FragmentResolver{}
	for _, dept := range domain.Departments {
		fragments := make([]string, 0, len(mapping[dept]))
		for _, f := range mapping[dept] {
			if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
				fragments = append(fragments, f)
			}
		}
		if len(fragments) > 0 {
			r.rules = append(r.rules, fragmentRule{department: dept, fragments: fragments})
		}
	}
	return r
}

// Resolve implements DepartmentResolver.
func (r *FragmentResolver) Resolve(email string) (domain.Department, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", false
	}
	for _, rule := range r.rules {
		for _, f := range rule.fragments {
			if strings.Contains(email, f) {
				return rule.department, true
			}
		}
	}
	return "", false
}

// PartitionByDepartment splits flagged tickets by their responsible's department.
// Tickets whose responsible resolves to no department are dropped.
func PartitionByDepartment(tickets []ClassifiedTicket, resolver DepartmentResolver) map[domain.Department][]ClassifiedTicket {
	out := make(map[domain.Department][]ClassifiedTicket)
	for _, t := range tickets {
		dept, ok := resolver.Resolve(t.ResponsibleEmail)
		if !ok {
			continue
		}
		out[dept] = append(out[dept], t)
	}
	return out
}
