package sources

import (
	"context"
	"time"

	"github.com/almadesk/recurring-alerts/internal/models"
)

// TicketSource defines the contract for reading AlmaDesk tickets.
// Both storage backends and APISource implement it.
type TicketSource interface {
	GetName() string
	// FetchTickets returns tickets created at or after since whose status is not
	// in excluded, newest first.
	FetchTickets(ctx context.Context, since time.Time, excluded []models.TicketStatus) ([]models.Ticket, error)
}
