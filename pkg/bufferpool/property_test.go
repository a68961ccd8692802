package bufferpool

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDirectoryInvariants drives random insert/remove schedules through
// the extendible directory and checks the structural invariants after
// every schedule.
func TestDirectoryInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("size and aliasing survive any schedule", prop.ForAll(
		func(ids []uint32, removeEvery byte) bool {
			d := NewDirectory(2, 64, 2)
			live := make(map[string]bool)
			step := int(removeEvery%5) + 2

			for i, raw := range ids {
				id := fmt.Sprintf("page-%d", raw%512)
				if i%step == 0 && live[id] {
					d.Remove(id)
					delete(live, id)
					continue
				}
				if live[id] {
					continue // one cached entry per page id
				}
				if d.Size() >= int(float64(d.NumEntries())*ExpandThreshold) {
					d.ExpandDirectory()
				}
				d.Insert(&page{id: id})
				live[id] = true
			}

			if d.Size() != len(live) {
				return false
			}
			for id := range live {
				if d.Get(id) == nil {
					return false
				}
			}
			// Depth bounds: min 1 (2 pages), max 6 (64 pages).
			if d.GlobalDepth() < 1 || d.GlobalDepth() > 6 {
				return false
			}
			// Aliasing: entries share a bucket iff their low local-depth
			// bits match.
			entries := d.Entries()
			for _, a := range entries {
				for _, b := range entries {
					depth := d.LocalDepth(a)
					sameBucket := d.BucketFor(a) == d.BucketFor(b)
					sameSuffix := d.LocalDepth(b) == depth && a[len(a)-depth:] == b[len(b)-depth:]
					if sameBucket != sameSuffix {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt32()),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}
