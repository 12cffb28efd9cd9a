package calendar

import (
	"context"
	"fmt"
	"strings"
)

// Ошибки допуска участника клуба.
var (
	ErrMemberNotFound = fmt.Errorf("%w: member not found", ErrPermission)
	ErrMemberBlocked  = fmt.Errorf("%w: member is blocked", ErrPermission)
	ErrMemberPending  = fmt.Errorf("%w: member is waiting for approval", ErrPermission)
)

// MemberStatus: статус участника в клубе.
type MemberStatus string

const (
	MemberPending  MemberStatus = "pending"
	MemberApproved MemberStatus = "approved"
	MemberBlocked  MemberStatus = "blocked"
)

// ParseMemberStatus принимает только известные статусы.
func ParseMemberStatus(s string) (MemberStatus, error) {
	switch st := MemberStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case MemberPending, MemberApproved, MemberBlocked:
		return st, nil
	default:
		return "", Validationf("unknown member status %q", s)
	}
}

// Member: участник, как его видит ядро.
type Member struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Status  MemberStatus `json:"status"`
	IsAdmin bool         `json:"is_admin"`
}

// MemberStore: источник данных об участниках.
// В проде это репозиторий над БД, в тестах: мок.
type MemberStore interface {
	FindMember(ctx context.Context, id string) (*Member, error)
}

// ValidateMember:
//   - достаёт участника из хранилища;
//   - заблокированных не пускает никогда;
//   - ожидающих подтверждения пускает только если это админ;
//   - возвращает Actor для дальнейших действий.
func ValidateMember(ctx context.Context, store MemberStore, id string) (Actor, error) {
	if strings.TrimSpace(id) == "" {
		return Actor{}, Validationf("empty member id")
	}

	m, err := store.FindMember(ctx, id)
	if err != nil {
		return Actor{}, err
	}
	if m == nil {
		return Actor{}, ErrMemberNotFound
	}

	switch {
	case m.Status == MemberBlocked:
		return Actor{}, ErrMemberBlocked
	case m.Status == MemberPending && !m.IsAdmin:
		return Actor{}, ErrMemberPending
	}

	return Actor{UserID: m.ID, Name: m.Name, IsAdmin: m.IsAdmin}, nil
}
