package store

import (
	"fmt"
	"strings"

	"github.com/AngelCh415/dmlab/internal/models"
)

func (s *MemoryStore) AddAccount(a models.Account) (models.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return a, fmt.Errorf("add account: %w: name is required", ErrInvalidInput)
	}
	a.WeeklyGoals = clampGoals(a.WeeklyGoals)
	err := s.mutate("add account", func(st *models.AppState) error {
		a.ID = s.idOr(strings.TrimSpace(a.ID))
		if indexOf(st.Config.Accounts, a.ID, accountID) >= 0 {
			return ErrDuplicateID
		}
		st.Config.Accounts = append(st.Config.Accounts, a)
		return nil
	})
	return a, err
}

// AccountUpdate is a partial account edit. Empty Name and nil WeeklyGoals keep
// the current values.
type AccountUpdate struct {
	Name        string
	WeeklyGoals *models.WeeklyGoals
}

// UpdateAccount changes name and weekly goals; the id is immutable here, see RenameAccount.
func (s *MemoryStore) UpdateAccount(id string, in AccountUpdate) (models.Account, error) {
	var a models.Account
	err := s.mutate("update account", func(st *models.AppState) error {
		i := indexOf(st.Config.Accounts, id, accountID)
		if i < 0 {
			return ErrNotFound
		}
		a = st.Config.Accounts[i]
		if name := strings.TrimSpace(in.Name); name != "" {
			a.Name = name
		}
		if in.WeeklyGoals != nil {
			a.WeeklyGoals = clampGoals(*in.WeeklyGoals)
		}
		st.Config.Accounts[i] = a
		return nil
	})
	return a, err
}

// RenameAccount changes an account id and rewrites every log and prospect that
// references the old one.
func (s *MemoryStore) RenameAccount(oldID, newID string) error {
	newID = strings.TrimSpace(newID)
	if newID == "" {
		return fmt.Errorf("rename account: %w: new id is required", ErrInvalidInput)
	}
	return s.mutate("rename account", func(st *models.AppState) error {
		i := indexOf(st.Config.Accounts, oldID, accountID)
		if i < 0 {
			return ErrNotFound
		}
		if oldID == newID {
			return nil
		}
		if indexOf(st.Config.Accounts, newID, accountID) >= 0 {
			return ErrDuplicateID
		}
		st.Config.Accounts[i].ID = newID
		for j := range st.Logs {
			if st.Logs[j].AccountID == oldID {
				st.Logs[j].AccountID = newID
			}
		}
		for j := range st.Prospects {
			if st.Prospects[j].AccountID == oldID {
				st.Prospects[j].AccountID = newID
			}
		}
		return nil
	})
}

func (s *MemoryStore) DeleteAccount(id string) error {
	return s.mutate("delete account", func(st *models.AppState) error {
		i := indexOf(st.Config.Accounts, id, accountID)
		if i < 0 {
			return ErrNotFound
		}
		if len(st.Config.Accounts) == 1 {
			return ErrLastAccount
		}
		for _, l := range st.Logs {
			if l.AccountID == id {
				return ErrAccountInUse
			}
		}
		for _, p := range st.Prospects {
			if p.AccountID == id {
				return ErrAccountInUse
			}
		}
		st.Config.Accounts = append(st.Config.Accounts[:i:i], st.Config.Accounts[i+1:]...)
		return nil
	})
}

func clampGoals(g models.WeeklyGoals) models.WeeklyGoals {
	g.ConnectionRequests = max(g.ConnectionRequests, 0)
	g.PermissionSent = max(g.PermissionSent, 0)
	g.BookedCalls = max(g.BookedCalls, 0)
	return g
}
