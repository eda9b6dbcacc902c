package follower

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/syntrixbase/metasync/internal/hms"
	"github.com/syntrixbase/metasync/internal/metastore"
	"github.com/syntrixbase/metasync/internal/store"
	"github.com/syntrixbase/metasync/internal/store/countwait"
)

// mockClient is a testify mock over the metastore client.
type mockClient struct {
	mock.Mock
}

func (m *mockClient) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockClient) Disconnect() error {
	return m.Called().Error(0)
}

func (m *mockClient) CurrentNotificationID(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockClient) FetchNotifications(ctx context.Context, after int64, max int) ([]hms.Event, error) {
	args := m.Called(ctx, after, max)
	if evs := args.Get(0); evs != nil {
		return evs.([]hms.Event), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) FullSnapshot(ctx context.Context) (*metastore.Snapshot, error) {
	args := m.Called(ctx)
	if snap := args.Get(0); snap != nil {
		return snap.(*metastore.Snapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

// fakeStore is a stateful in-memory store. The follower loop reads back what
// it writes within a single pass, so a record-and-replay mock would fight the
// tests; a small fake keeps them readable.
type fakeStore struct {
	mu sync.Mutex

	maxNotificationID int64
	lastImageID       int64
	pathsEmpty        bool
	everPersisted     bool

	applied   []hms.Event
	noopIDs   []int64
	images    []int64
	conflicts map[int64]bool

	failMaxID      error
	failApply      error
	failPersistID  error
	failImageRead  error
	failEmptyCheck error

	cw *countwait.CounterWait
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pathsEmpty: true,
		conflicts:  map[int64]bool{},
		cw:         countwait.New(),
	}
}

func (s *fakeStore) GetMaxNotificationID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMaxID != nil {
		return 0, s.failMaxID
	}
	return s.maxNotificationID, nil
}

func (s *fakeStore) IsNotificationsEmpty(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failEmptyCheck != nil {
		return false, s.failEmptyCheck
	}
	return !s.everPersisted, nil
}

func (s *fakeStore) IsPathsImageEmpty(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pathsEmpty, nil
}

func (s *fakeStore) GetLastProcessedImageID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failImageRead != nil {
		return 0, s.failImageRead
	}
	return s.lastImageID, nil
}

func (s *fakeStore) PersistFullPathsImage(ctx context.Context, image store.PathsImage, imageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, imageID)
	s.lastImageID = imageID
	s.maxNotificationID = imageID
	s.pathsEmpty = len(image) == 0
	s.everPersisted = true
	return nil
}

func (s *fakeStore) PersistLastProcessedID(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPersistID != nil {
		return s.failPersistID
	}
	s.noopIDs = append(s.noopIDs, id)
	if id > s.maxNotificationID {
		s.maxNotificationID = id
	}
	s.everPersisted = true
	return nil
}

func (s *fakeStore) ApplyEvent(ctx context.Context, ev hms.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failApply != nil {
		return false, s.failApply
	}
	if s.conflicts[ev.ID] {
		return false, store.ErrConflict
	}
	s.applied = append(s.applied, ev)
	if ev.ID > s.maxNotificationID {
		s.maxNotificationID = ev.ID
	}
	s.everPersisted = true
	return true, nil
}

func (s *fakeStore) CounterWait() *countwait.CounterWait {
	return s.cw
}

func (s *fakeStore) Close(ctx context.Context) error {
	return nil
}

func (s *fakeStore) appliedIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.applied))
	for i, ev := range s.applied {
		out[i] = ev.ID
	}
	return out
}
