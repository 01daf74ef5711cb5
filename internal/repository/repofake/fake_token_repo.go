package repofake

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"user_accounts/internal/model"
	"user_accounts/internal/repository"
)

var _ repository.TokenRepository = (*FakeTokenRepo)(nil)

type FakeTokenRepo struct {
	tokens map[int64]model.AccessToken
	nextID int64
	lock   sync.RWMutex

	// Err, when set, is returned by every call
	Err error
}

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{
		tokens: make(map[int64]model.AccessToken),
	}
}

func (r *FakeTokenRepo) Create(_ context.Context, token *model.AccessToken) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.Err != nil {
		return r.Err
	}

	for _, t := range r.tokens {
		if t.TokenHash == token.TokenHash {
			return repository.ErrDuplicate
		}
	}
	r.nextID++
	token.ID = r.nextID
	r.tokens[token.ID] = copyToken(*token)
	return nil
}

func (r *FakeTokenRepo) FindByID(_ context.Context, id int64) (*model.AccessToken, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.Err != nil {
		return nil, r.Err
	}

	t, ok := r.tokens[id]
	if !ok {
		return nil, nil
	}
	t = copyToken(t)
	return &t, nil
}

func (r *FakeTokenRepo) FindByHash(_ context.Context, hash string) (*model.AccessToken, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.Err != nil {
		return nil, r.Err
	}

	for _, t := range r.tokens {
		if t.TokenHash == hash {
			t = copyToken(t)
			return &t, nil
		}
	}
	return nil, nil
}

func (r *FakeTokenRepo) ListByUser(_ context.Context, userID int64) ([]model.AccessToken, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.Err != nil {
		return nil, r.Err
	}

	tokens := []model.AccessToken{}
	for _, t := range r.tokens {
		if t.UserID == userID {
			tokens = append(tokens, copyToken(t))
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].ID > tokens[j].ID
	})
	return tokens, nil
}

func (r *FakeTokenRepo) DeleteByUser(_ context.Context, userID int64) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}

	var n int64
	for id, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, id)
			n++
		}
	}
	return n, nil
}

func (r *FakeTokenRepo) Delete(_ context.Context, id int64) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.Err != nil {
		return false, r.Err
	}

	if _, ok := r.tokens[id]; !ok {
		return false, nil
	}
	delete(r.tokens, id)
	return true, nil
}

func (r *FakeTokenRepo) TouchLastUsed(_ context.Context, id int64, at time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.Err != nil {
		return r.Err
	}

	t, ok := r.tokens[id]
	if !ok {
		return nil
	}
	t.LastUsedAt = &at
	r.tokens[id] = t
	return nil
}

// All returns a snapshot of every stored token
func (r *FakeTokenRepo) All() []model.AccessToken {
	r.lock.RLock()
	defer r.lock.RUnlock()

	tokens := make([]model.AccessToken, 0, len(r.tokens))
	for _, t := range r.tokens {
		tokens = append(tokens, copyToken(t))
	}
	return tokens
}

func copyToken(t model.AccessToken) model.AccessToken {
	t.Scopes = slices.Clone(t.Scopes)
	if t.LastUsedAt != nil {
		at := *t.LastUsedAt
		t.LastUsedAt = &at
	}
	return t
}
