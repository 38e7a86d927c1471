package kpi

import "github.com/AngelCh415/dmlab/internal/models"

// Totals holds summed funnel counts.
type Totals struct {
	ConnectionRequestsSent        int `json:"connectionRequestsSent"`
	ConnectionsAccepted           int `json:"connectionsAccepted"`
	PermissionMessagesSent        int `json:"permissionMessagesSent"`
	PermissionSeen                int `json:"permissionSeen"`
	PermissionPositives           int `json:"permissionPositives"`
	OfferMessagesSent             int `json:"offerMessagesSent"`
	OfferSeen                     int `json:"offerSeen"`
	OfferOrBookingIntentPositives int `json:"offerOrBookingIntentPositives"`
	BookedCalls                   int `json:"bookedCalls"`
	AttendedCalls                 int `json:"attendedCalls"`
	ClosedDeals                   int `json:"closedDeals"`
}

// Add accumulates one log.
func (t *Totals) Add(l models.DailyLog) {
	t.ConnectionRequestsSent += l.ConnectionRequestsSent
	t.ConnectionsAccepted += l.ConnectionsAccepted
	t.PermissionMessagesSent += l.PermissionMessagesSent
	t.PermissionSeen += l.PermissionSeen
	t.PermissionPositives += l.PermissionPositives
	t.OfferMessagesSent += l.OfferMessagesSent
	t.OfferSeen += l.OfferSeen
	t.OfferOrBookingIntentPositives += l.OfferOrBookingIntentPositives
	t.BookedCalls += l.BookedCalls
	t.AttendedCalls += l.AttendedCalls
	t.ClosedDeals += l.ClosedDeals
}

// Merge adds another set of totals.
func (t *Totals) Merge(o Totals) {
	t.ConnectionRequestsSent += o.ConnectionRequestsSent
	t.ConnectionsAccepted += o.ConnectionsAccepted
	t.PermissionMessagesSent += o.PermissionMessagesSent
	t.PermissionSeen += o.PermissionSeen
	t.PermissionPositives += o.PermissionPositives
	t.OfferMessagesSent += o.OfferMessagesSent
	t.OfferSeen += o.OfferSeen
	t.OfferOrBookingIntentPositives += o.OfferOrBookingIntentPositives
	t.BookedCalls += o.BookedCalls
	t.AttendedCalls += o.AttendedCalls
	t.ClosedDeals += o.ClosedDeals
}

// Aggregate sums the logs; the result does not depend on their order.
func Aggregate(logs []models.DailyLog) Totals {
	var t Totals
	for _, l := range logs {
		t.Add(l)
	}
	return t
}
