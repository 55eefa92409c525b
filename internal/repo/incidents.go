package repo

import (
	"context"
	"strings"

	"orderline/internal/domain"
	"orderline/internal/tablestore"
)

// closedIncidentStatuses are matched case-insensitively; everything else
// counts as open.
var closedIncidentStatuses = map[string]bool{
	"gelöst": true,
	"closed": true,
}

// IncidentOpen reports whether an incident still counts against the Ampel.
func IncidentOpen(inc domain.Incident) bool {
	return !closedIncidentStatuses[strings.ToLower(inc.Status)]
}

// ListIncidents returns all incidents. A missing incidents table is treated
// as an empty table: the source base did not always have one.
func (r Repo) ListIncidents(ctx context.Context) ([]domain.Incident, error) {
	recs, err := r.Store.List(ctx, r.Tables.Incidents, tablestore.Query{})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]domain.Incident, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeIncident(rec))
	}
	return out, nil
}

// OpenIncidentsByOrder counts open incidents per linked order.
func (r Repo) OpenIncidentsByOrder(ctx context.Context) (map[string]int, error) {
	incidents, err := r.ListIncidents(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, inc := range incidents {
		if !IncidentOpen(inc) {
			continue
		}
		for _, orderID := range inc.OrderIDs {
			counts[orderID]++
		}
	}
	return counts, nil
}

// CountOpenIncidents counts open incidents for one order.
func (r Repo) CountOpenIncidents(ctx context.Context, orderID string) (int, error) {
	counts, err := r.OpenIncidentsByOrder(ctx)
	if err != nil {
		return 0, err
	}
	return counts[orderID], nil
}
