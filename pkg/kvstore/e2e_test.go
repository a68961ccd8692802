package kvstore

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRandomWorkloadMatchesReference drives a few thousand random puts,
// updates, and deletes against both policies and checks the store against
// an in-memory reference map, including across a close/reopen cycle.
func TestRandomWorkloadMatchesReference(t *testing.T) {
	for _, eviction := range []string{"lru", "clock"} {
		t.Run(eviction, func(t *testing.T) {
			dir := t.TempDir()
			opts := testOptions()
			opts.MemtableMaxEntries = 32
			opts.BufferPool.Eviction = eviction

			s, err := Open(dir, opts)
			require.NoError(t, err)

			rng := rand.New(rand.NewSource(42))
			reference := make(map[uint64]uint64)

			for i := 0; i < 5000; i++ {
				key := uint64(rng.Intn(600))
				switch rng.Intn(10) {
				case 0:
					require.NoError(t, s.Delete(key))
					delete(reference, key)
				case 1:
					value := uint64(rng.Intn(1 << 40))
					require.NoError(t, s.Update(key, value))
					reference[key] = value
				default:
					value := uint64(rng.Intn(1 << 40))
					require.NoError(t, s.Put(key, value))
					reference[key] = value
				}
			}

			verify := func(s *Store) {
				for key := uint64(0); key < 600; key++ {
					want, exists := reference[key]
					got, found, err := s.Get(key)
					require.NoError(t, err)
					require.Equal(t, exists, found, "key %d presence", key)
					if exists {
						require.Equal(t, want, got, "key %d value", key)
					}
				}

				out, err := s.Scan(0, 599)
				require.NoError(t, err)
				require.Len(t, out, len(reference))
				for i := 1; i < len(out); i++ {
					require.Less(t, out[i-1].Key, out[i].Key, "scan order")
				}
				for _, e := range out {
					require.Equal(t, reference[e.Key], e.Value, "scan value for key %d", e.Key)
				}
			}

			verify(s)
			require.NoError(t, s.Close())

			reopened, err := Open(dir, opts)
			require.NoError(t, err)
			defer reopened.Close()
			verify(reopened)
		})
	}
}
