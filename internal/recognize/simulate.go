package recognize

import (
	"context"
	"log"
	"sync/atomic"
)

// simulated classifications, rotated deterministically so repeated drops
// exercise different guidance paths.
var simulatedResults = []Result{
	{
		Category:        "Recyclable-Plastic-Water Bottle",
		Composition:     "polyethylene terephthalate (PET)",
		DegradationTime: "roughly 400-500 years in nature",
		RecyclingValue:  "recyclable as regenerated plastic; rinse, flatten and drop in the recyclables bin",
		Confidence:      0.95,
	},
	{
		Category:        "Hazardous-Battery-Spent Lithium Battery",
		Composition:     "lithium, cobalt and nickel with organic electrolyte",
		DegradationTime: "persists in the environment for decades",
		RecyclingValue:  "contains recoverable metals; hand over to a certified recycler",
		Confidence:      0.88,
	},
	{
		Category:        "Organic-Food-Apple Core",
		Composition:     "cellulose, hemicellulose and pectin",
		DegradationTime: "one to two months under composting",
		RecyclingValue:  "compostable; drain and drop in the food waste bin",
		Confidence:      0.92,
	},
	{
		Category:        "Other-Textile-Disposable Mask",
		Composition:     "polypropylene non-woven fabric",
		DegradationTime: "25 years or more in nature",
		RecyclingValue:  "not recyclable; seal and drop in the residual waste bin",
		Confidence:      0.85,
	},
}

// Simulator returns canned classifications without any network call. It is
// the fallback when no API credentials are configured, and doubles as a
// test recognizer.
type Simulator struct {
	next atomic.Uint64
}

// NewSimulator creates a Simulator starting at the first canned result.
func NewSimulator() *Simulator {
	return &Simulator{}
}

// Recognize returns the next canned result in rotation. The image is never
// read; only cancellation is honored.
func (s *Simulator) Recognize(ctx context.Context, imagePath string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i := (s.next.Add(1) - 1) % uint64(len(simulatedResults))
	result := normalize(simulatedResults[i])
	log.Printf("recognize: simulated result %q for %s", result.Category, imagePath)
	return result, nil
}
