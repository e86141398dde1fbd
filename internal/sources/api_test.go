package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var since = time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)

func TestAPISource_GetName(t *testing.T) {
	assert.Equal(t, "almadesk-api", NewAPISource("http://localhost", "").GetName())
}

func TestAPISource_FetchTickets(t *testing.T) {
	var requests []*http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r)
		assert.Equal(t, "/api/tickets", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		resp := apiTicketPage{Page: page, TotalPages: 2}
		switch page {
		case 1:
			for i := 1; i <= apiPageSize; i++ {
				resp.Tickets = append(resp.Tickets, apiTicket{
					ID:          int64(i),
					Title:       fmt.Sprintf("Ticket %d", i),
					Category:    "network",
					Priority:    "MEDIUM",
					Status:      "OPEN",
					CreatedByID: 1,
					CreatedAt:   since.Add(time.Duration(i) * time.Minute),
				})
			}
		case 2:
			resp.Tickets = []apiTicket{{
				ID:          9999,
				Title:       "Newest",
				Category:    "HARDWARE",
				Status:      "IN_PROGRESS",
				CreatedByID: 2,
				CreatedAt:   since.Add(48 * time.Hour),
			}}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	source := NewAPISource(server.URL+"/", "secret")
	tickets, err := source.FetchTickets(context.Background(), since, []models.TicketStatus{models.TicketClosed, models.TicketResolved})
	require.NoError(t, err)

	require.Len(t, requests, 2)
	query := requests[0].URL.Query()
	assert.Equal(t, since.Format(time.RFC3339), query.Get("createdAfter"))
	assert.Equal(t, "CLOSED,RESOLVED", query.Get("excludeStatus"))
	assert.Equal(t, "200", query.Get("limit"))

	require.Len(t, tickets, apiPageSize+1)
	assert.Equal(t, int64(9999), tickets[0].ID)
	assert.Equal(t, models.CategoryHardware, tickets[0].Category)
	assert.Equal(t, int64(apiPageSize), tickets[1].ID)
	assert.Equal(t, models.CategoryNetwork, tickets[1].Category)
	assert.Equal(t, int64(1), tickets[len(tickets)-1].ID)
}

func TestAPISource_ShortPageStops(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Empty(t, r.URL.Query().Get("excludeStatus"))
		assert.Empty(t, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(apiTicketPage{Page: 1})
	}))
	defer server.Close()

	tickets, err := NewAPISource(server.URL, "").FetchTickets(context.Background(), since, nil)
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.Equal(t, 1, calls)
}

func TestAPISource_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("maintenance"))
	}))
	defer server.Close()

	_, err := NewAPISource(server.URL, "").FetchTickets(context.Background(), since, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestAPISource_FiltersWhatTheServerIgnores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiTicketPage{Page: 1, Tickets: []apiTicket{
			{ID: 1, Title: "Too old", Status: "OPEN", CreatedAt: since.Add(-time.Hour)},
			{ID: 2, Title: "Closed", Status: "CLOSED", CreatedAt: since.Add(time.Hour)},
			{ID: 3, Title: "Resolved", Status: "resolved", CreatedAt: since.Add(time.Hour)},
			{ID: 4, Title: "Kept", Status: "OPEN", CreatedAt: since.Add(2 * time.Hour)},
			{ID: 5, Title: "On the boundary", Status: "IN_PROGRESS", CreatedAt: since},
		}})
	}))
	defer server.Close()

	tickets, err := NewAPISource(server.URL, "").FetchTickets(context.Background(), since,
		[]models.TicketStatus{models.TicketClosed, models.TicketResolved})
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, int64(4), tickets[0].ID)
	assert.Equal(t, int64(5), tickets[1].ID)
}

func fullPage(firstID int64) apiTicketPage {
	page := apiTicketPage{}
	for i := int64(0); i < apiPageSize; i++ {
		page.Tickets = append(page.Tickets, apiTicket{ID: firstID + i, Status: "OPEN", CreatedAt: since.Add(time.Hour)})
	}
	return page
}

func TestAPISource_RepeatedPageStops(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// Ignores ?page= and never reports totalPages.
		json.NewEncoder(w).Encode(fullPage(1))
	}))
	defer server.Close()

	tickets, err := NewAPISource(server.URL, "").FetchTickets(context.Background(), since, nil)
	require.NoError(t, err)
	assert.Len(t, tickets, apiPageSize)
	assert.Equal(t, 2, calls)
}

func TestAPISource_PageCap(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		json.NewEncoder(w).Encode(fullPage(int64(page) * apiPageSize))
	}))
	defer server.Close()

	tickets, err := NewAPISource(server.URL, "").FetchTickets(context.Background(), since, nil)
	require.NoError(t, err)
	assert.Equal(t, maxAPIPages, calls)
	assert.Len(t, tickets, maxAPIPages*apiPageSize)
}
