// Package memstore is an in-memory transactional repository.Store with the
// same uniqueness and referential guards as the SQL schema. Transactions
// are serialized and roll back by discarding a working copy.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/repository"
)

type dataset struct {
	users         map[int64]domain.User
	tasks         map[int64]domain.Task
	submissions   map[int64]domain.Submission
	potential     map[int64]domain.PotentialMessage
	dialogs       map[int64]domain.DialogState
	notifications map[string]domain.Notification
	support       map[int64]domain.SupportRequest

	taskSeq       int64
	submissionSeq int64
	potentialSeq  int64
	supportSeq    int64
}

func newDataset() *dataset {
	return &dataset{
		users:         map[int64]domain.User{},
		tasks:         map[int64]domain.Task{},
		submissions:   map[int64]domain.Submission{},
		potential:     map[int64]domain.PotentialMessage{},
		dialogs:       map[int64]domain.DialogState{},
		notifications: map[string]domain.Notification{},
		support:       map[int64]domain.SupportRequest{},
	}
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		users:         make(map[int64]domain.User, len(d.users)),
		tasks:         make(map[int64]domain.Task, len(d.tasks)),
		submissions:   make(map[int64]domain.Submission, len(d.submissions)),
		potential:     make(map[int64]domain.PotentialMessage, len(d.potential)),
		dialogs:       make(map[int64]domain.DialogState, len(d.dialogs)),
		notifications: make(map[string]domain.Notification, len(d.notifications)),
		support:       make(map[int64]domain.SupportRequest, len(d.support)),
		taskSeq:       d.taskSeq,
		submissionSeq: d.submissionSeq,
		potentialSeq:  d.potentialSeq,
		supportSeq:    d.supportSeq,
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.tasks {
		c.tasks[k] = v
	}
	for k, v := range d.submissions {
		c.submissions[k] = v
	}
	for k, v := range d.potential {
		c.potential[k] = v
	}
	for k, v := range d.dialogs {
		c.dialogs[k] = v
	}
	for k, v := range d.notifications {
		c.notifications[k] = v
	}
	for k, v := range d.support {
		c.support[k] = v
	}
	return c
}

// Store implements repository.Store in memory. Stored values are replaced,
// never mutated in place, so a shallow map copy isolates a transaction.
type Store struct {
	mu   sync.Mutex
	data *dataset
	// Now stamps created/updated columns.
	Now func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{data: newDataset(), Now: time.Now}
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// session runs operations against one dataset, either under the store lock
// (autocommit) or inside an already locked transaction.
type session struct {
	store *Store
	// data is set inside transactions.
	data *dataset
}

func (s *session) run(fn func(d *dataset) error) error {
	if s.data != nil {
		return fn(s.data)
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return fn(s.store.data)
}

func (s *session) now() time.Time {
	return s.store.now()
}

func (s *session) repos() repository.Repositories {
	return repository.Repositories{
		Users:         &userRepo{s},
		Tasks:         &taskRepo{s},
		Submissions:   &submissionRepo{s},
		Potential:     &potentialRepo{s},
		Dialogs:       &dialogRepo{s},
		Notifications: &notificationRepo{s},
		Support:       &supportRepo{s},
		Stats:         &statsRepo{s},
	}
}

// Repos returns autocommit repositories.
func (s *Store) Repos() repository.Repositories {
	return (&session{store: s}).repos()
}

// InTx runs fn against a working copy and publishes it only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn((&session{store: s, data: work}).repos()); err != nil {
		return err
	}
	s.data = work
	return nil
}

// Notifications returns every outbox row, for assertions in tests.
func (s *Store) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Notification, 0, len(s.data.notifications))
	for _, n := range s.data.notifications {
		out = append(out, n)
	}
	sortNotifications(out)
	return out
}
