package worker

import (
	"fmt"
	"sync"
	"time"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/clock/system"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/hash/sha256"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
	memqueue "github.com/CarlaKobielski/projeto-antipirataria/internal/queue/memory"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/storage/memory"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%d", s.n), nil
}

type fixture struct {
	store *memory.Store
	blobs *memory.BlobStore
	queue *memqueue.Queue
	clock system.Fixed
	ids   *seqIDs
}

func newFixture() *fixture {
	clock := system.Fixed{At: testNow}
	return &fixture{
		store: memory.NewStore(),
		blobs: memory.NewBlobStore(),
		queue: memqueue.New(memqueue.WithClock(clock)),
		clock: clock,
		ids:   &seqIDs{},
	}
}

func (f *fixture) hasher() piracy.Hasher {
	return sha256.New()
}
