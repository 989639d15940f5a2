package auth

import "repdayAPI/internal/user"

// Elevator decides whether a user may read challenges they do not belong to.
type Elevator interface {
	IsElevated(u *user.User) bool
}

// SuperadminList elevates a fixed set of telegram ids.
type SuperadminList map[int64]struct{}

func NewSuperadminList(ids []int64) SuperadminList {
	l := make(SuperadminList, len(ids))
	for _, id := range ids {
		l[id] = struct{}{}
	}
	return l
}

func (l SuperadminList) IsElevated(u *user.User) bool {
	if u == nil {
		return false
	}
	_, ok := l[u.TelegramID]
	return ok
}
