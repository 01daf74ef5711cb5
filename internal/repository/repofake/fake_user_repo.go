// Package repofake provides in-memory repository implementations used by
// the service and handler tests.
package repofake

import (
	"context"
	"sync"

	"user_accounts/internal/model"
	"user_accounts/internal/repository"
)

var _ repository.UserRepository = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users   map[int64]model.User
	byPhone map[string]int64
	nextID  int64
	lock    sync.RWMutex

	// Err, when set, is returned by every call
	Err error
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:   make(map[int64]model.User),
		byPhone: make(map[string]int64),
	}
}

func (r *FakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.Err != nil {
		return r.Err
	}

	if _, ok := r.byPhone[user.Phone]; ok {
		return repository.ErrDuplicate
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = *user
	r.byPhone[user.Phone] = user.ID
	return nil
}

func (r *FakeUserRepo) FindByPhone(_ context.Context, phone string) (*model.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.Err != nil {
		return nil, r.Err
	}

	id, ok := r.byPhone[phone]
	if !ok {
		return nil, nil
	}
	user := r.users[id]
	return &user, nil
}

func (r *FakeUserRepo) FindByID(_ context.Context, id int64) (*model.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.Err != nil {
		return nil, r.Err
	}

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// Count returns the number of stored users
func (r *FakeUserRepo) Count() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.users)
}
