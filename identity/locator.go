package identity

import (
	"context"
	"sort"

	"github.com/kubex/caseload-identity/caseload"
)

// Locator finds identity records that share an email with an incoming identity
// but are stored under a different key.
type Locator struct {
	users UserStore
}

func NewLocator(users UserStore) *Locator {
	return &Locator{users: users}
}

// FindByEmail returns candidates oldest first, ties broken by key, so repeated
// resolutions always settle on the same legacy record.
func (l *Locator) FindByEmail(ctx context.Context, email, excludeKey string) ([]caseload.User, error) {
	found, err := l.users.FindUsersByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	fold := caseload.NormalizeEmail(email)
	candidates := make([]caseload.User, 0, len(found))
	for _, u := range found {
		if u.Key == excludeKey || u.EmailFold() != fold {
			continue
		}
		candidates = append(candidates, u)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt != candidates[j].CreatedAt {
			return candidates[i].CreatedAt < candidates[j].CreatedAt
		}
		return candidates[i].Key < candidates[j].Key
	})
	return candidates, nil
}
