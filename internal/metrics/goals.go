package metrics

import (
	"time"

	"github.com/AngelCh415/dmlab/internal/models"
)

type GoalMetric struct {
	Actual int      `json:"actual"`
	Goal   int      `json:"goal"`
	Pct    *float64 `json:"pct"`
}

// GoalProgress is one account's volume against its weekly goals. Both lanes count:
// goals track outreach volume, not conversion.
type GoalProgress struct {
	AccountID          string     `json:"accountId"`
	Name               string     `json:"name"`
	WeekStart          string     `json:"weekStart"`
	WeekEnd            string     `json:"weekEnd"`
	ConnectionRequests GoalMetric `json:"connectionRequests"`
	PermissionSent     GoalMetric `json:"permissionSent"`
	BookedCalls        GoalMetric `json:"bookedCalls"`
}

// ISOWeek returns the Monday and Sunday of the ISO week containing ref.
func ISOWeek(ref time.Time) (string, string) {
	ref = time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(ref.Weekday()) + 6) % 7
	start := ref.AddDate(0, 0, -offset)
	return start.Format(dateLayout), start.AddDate(0, 0, 6).Format(dateLayout)
}

// WeeklyGoals reports every account's progress for the week containing ref.
func (s *Service) WeeklyGoals(ref time.Time) []GoalProgress {
	start, end := ISOWeek(ref)
	var out []GoalProgress
	s.st.Read(func(st models.AppState, _ uint64) {
		out = make([]GoalProgress, 0, len(st.Config.Accounts))
		for _, a := range st.Config.Accounts {
			var req, sent, booked int
			for _, l := range st.Logs {
				if l.AccountID != a.ID || l.Date < start || l.Date > end {
					continue
				}
				req += l.ConnectionRequestsSent
				sent += l.PermissionMessagesSent
				booked += l.BookedCalls
			}
			out = append(out, GoalProgress{
				AccountID:          a.ID,
				Name:               a.Name,
				WeekStart:          start,
				WeekEnd:            end,
				ConnectionRequests: goalMetric(req, a.WeeklyGoals.ConnectionRequests),
				PermissionSent:     goalMetric(sent, a.WeeklyGoals.PermissionSent),
				BookedCalls:        goalMetric(booked, a.WeeklyGoals.BookedCalls),
			})
		}
	})
	return out
}

func goalMetric(actual, goal int) GoalMetric {
	m := GoalMetric{Actual: actual, Goal: goal}
	if goal > 0 {
		p := round2(float64(actual) / float64(goal) * 100)
		m.Pct = &p
	}
	return m
}

func round2(f float64) float64 { return float64(int64(f*100+0.5)) / 100 }
