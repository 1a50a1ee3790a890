package tasks

import (
	"fmt"

	"github.com/desertthunder/xsx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, 0 when the collection is walked lazily
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data, a [models.CloneResult] for entity outcomes
}

// Operation phase enumeration
type Phase int

const (
	CheckDestination Phase = iota
	CloneAttributes
	CloneProducts
	CloneInventory
	CloneCustomers
	SeedEntities
	Finished
)

func (p Phase) String() string {
	switch p {
	case CheckDestination:
		return "check_destination"
	case CloneAttributes:
		return "clone_attributes"
	case CloneProducts:
		return "clone_products"
	case CloneInventory:
		return "clone_inventory"
	case CloneCustomers:
		return "clone_customers"
	case SeedEntities:
		return "seed"
	case Finished:
		return "finished"
	default:
		return ""
	}
}

func phaseFor(t models.EntityType) Phase {
	switch t {
	case models.VariantAttributes, models.Brands, models.Suppliers:
		return CloneAttributes
	case models.Customers:
		return CloneCustomers
	case models.Inventory:
		return CloneInventory
	default:
		return CloneProducts
	}
}

func checkDestinationUpdate(domain string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckDestination,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Checking destination account (%s)...", domain),
	}
}

func startTypeUpdate(t models.EntityType, step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phaseFor(t),
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Cloning %s...", t),
	}
}

func resultUpdate(step int, r models.CloneResult) ProgressUpdate {
	var msg string
	switch r.Status {
	case models.StatusCreated:
		msg = fmt.Sprintf("[%d] ✓ %s %s", step, r.Type.Singular(), r.Name)
	case models.StatusSkipped:
		msg = fmt.Sprintf("[%d] - %s %s: %s", step, r.Type.Singular(), r.Name, r.Detail)
	default:
		msg = fmt.Sprintf("[%d] ✗ %s %s: %s", step, r.Type.Singular(), r.Name, r.Error)
	}
	return ProgressUpdate{Phase: phaseFor(r.Type), Step: step, Message: msg, Data: r}
}

func seedUpdate(step, total int, r models.CloneResult) ProgressUpdate {
	u := resultUpdate(step, r)
	u.Phase = SeedEntities
	u.Total = total
	return u
}

func finishedUpdate(s *models.CloneSummary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finished,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Run %s: %d created, %d skipped, %d failed", s.Status, s.Counts.Created, s.Counts.Skipped, s.Counts.Failed),
		Data:    s,
	}
}
