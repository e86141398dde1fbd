package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	apiPageSize = 200

	// maxAPIPages bounds a fetch when the server keeps reporting full pages
	maxAPIPages = 500
)

// APISource reads tickets from the AlmaDesk REST API
type APISource struct {
	client  *resty.Client
	baseURL string
}

// Ensure APISource implements TicketSource
var _ TicketSource = (*APISource)(nil)

type apiTicketPage struct {
	Tickets    []apiTicket `json:"tickets"`
	Page       int         `json:"page"`
	TotalPages int         `json:"totalPages"`
}

type apiTicket struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedByID int64     `json:"createdById"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewAPISource creates a REST ticket source. token is sent as a bearer token when set.
func NewAPISource(baseURL, token string) *APISource {
	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", "AlmaDesk-Recurring-Detector/1.0").
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}

	return &APISource{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *APISource) GetName() string {
	return "almadesk-api"
}

func (s *APISource) FetchTickets(ctx context.Context, since time.Time, excluded []models.TicketStatus) ([]models.Ticket, error) {
	excludedParam := make([]string, 0, len(excluded))
	skip := make(map[models.TicketStatus]bool, len(excluded))
	for _, st := range excluded {
		excludedParam = append(excludedParam, string(st))
		skip[st] = true
	}

	var tickets []models.Ticket
	seen := make(map[int64]bool)
	for page := 1; ; page++ {
		if page > maxAPIPages {
			logrus.Warnf("Stopped fetching from %s after %d pages", s.GetName(), maxAPIPages)
			break
		}

		result, err := s.fetchPage(ctx, since, strings.Join(excludedParam, ","), page)
		if err != nil {
			return nil, err
		}

		fresh := 0
		for _, t := range result.Tickets {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			fresh++

			ticket := models.Ticket{
				ID:          t.ID,
				Title:       t.Title,
				Description: t.Description,
				Category:    models.TicketCategory(strings.ToUpper(t.Category)),
				Priority:    models.TicketPriority(strings.ToUpper(t.Priority)),
				Status:      models.TicketStatus(strings.ToUpper(t.Status)),
				CreatedByID: t.CreatedByID,
				CreatedAt:   t.CreatedAt,
			}
			// The server filters are advisory, the window and exclusions are enforced here.
			if ticket.CreatedAt.Before(since) || skip[ticket.Status] {
				continue
			}
			tickets = append(tickets, ticket)
		}

		if len(result.Tickets) < apiPageSize || (result.TotalPages > 0 && page >= result.TotalPages) {
			break
		}
		if fresh == 0 {
			logrus.Warnf("Page %d from %s repeated earlier tickets, stopping", page, s.GetName())
			break
		}
	}

	// Newest first, the order the detector relies on for representative titles.
	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].ID > tickets[j].ID
		}
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})

	logrus.Debugf("Fetched %d tickets from %s", len(tickets), s.GetName())
	return tickets, nil
}

func (s *APISource) fetchPage(ctx context.Context, since time.Time, excluded string, page int) (*apiTicketPage, error) {
	req := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"createdAfter": since.UTC().Format(time.RFC3339),
			"page":         strconv.Itoa(page),
			"limit":        strconv.Itoa(apiPageSize),
		})
	if excluded != "" {
		req.SetQueryParam("excludeStatus", excluded)
	}

	resp, err := req.Get(s.baseURL + "/api/tickets")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tickets page %d: %w", page, err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("ticket API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var result apiTicketPage
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse ticket API response: %w", err)
	}

	return &result, nil
}
