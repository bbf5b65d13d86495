package assignment

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/kzcare/crm/pkg/models"
)

// ErrNoEligibleUsers is returned when no active staff user is classified
// at the requested stage. Callers must handle it; there is no fallback.
var ErrNoEligibleUsers = errors.New("no eligible users for stage")

// Selector picks one user out of a non-empty candidate list.
type Selector interface {
	Select(ctx context.Context, candidates []models.User) (*models.User, error)
}

// RandomSelector picks uniformly at random.
type RandomSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSelector creates a random selector seeded with the given seed.
func NewRandomSelector(seed int64) *RandomSelector {
	return &RandomSelector{rng: rand.New(rand.NewSource(seed))}
}

// Select implements Selector.
func (s *RandomSelector) Select(_ context.Context, candidates []models.User) (*models.User, error) {
	if len(candidates) == 0 {
		return nil, ErrNoEligibleUsers
	}
	s.mu.Lock()
	i := s.rng.Intn(len(candidates))
	s.mu.Unlock()
	u := candidates[i]
	return &u, nil
}

// RoundRobinSelector cycles through candidates in order. Candidate lists
// are ordered by user id, so consecutive assignments rotate through the
// same staff pool deterministically.
type RoundRobinSelector struct {
	mu   sync.Mutex
	next uint64
}

// NewRoundRobinSelector creates a round-robin selector.
func NewRoundRobinSelector() *RoundRobinSelector {
	return &RoundRobinSelector{}
}

// Select implements Selector.
func (s *RoundRobinSelector) Select(_ context.Context, candidates []models.User) (*models.User, error) {
	if len(candidates) == 0 {
		return nil, ErrNoEligibleUsers
	}
	s.mu.Lock()
	i := s.next % uint64(len(candidates))
	s.next++
	s.mu.Unlock()
	u := candidates[i]
	return &u, nil
}

// LoadFunc reports how many objects each user currently holds grants on.
type LoadFunc func(ctx context.Context) (map[int64]int, error)

// LeastLoadedSelector picks the candidate with the fewest current grants,
// breaking ties by lowest user id.
type LeastLoadedSelector struct {
	loads LoadFunc
}

// NewLeastLoadedSelector creates a least-loaded selector over the given
// load source.
func NewLeastLoadedSelector(loads LoadFunc) *LeastLoadedSelector {
	return &LeastLoadedSelector{loads: loads}
}

// Select implements Selector.
func (s *LeastLoadedSelector) Select(ctx context.Context, candidates []models.User) (*models.User, error) {
	if len(candidates) == 0 {
		return nil, ErrNoEligibleUsers
	}
	counts, err := s.loads(ctx)
	if err != nil {
		return nil, err
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if counts[c.ID] < counts[best.ID] ||
			(counts[c.ID] == counts[best.ID] && c.ID < best.ID) {
			best = c
		}
	}
	return &best, nil
}
