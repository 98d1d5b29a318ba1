package sweep

import (
	"context"
)

// ProbeResult is the answer to a single manual probe.
type ProbeResult struct {
	Record ResultRecord

	// Cached is true when the record came from the store and the oracle was
	// not called.
	Cached bool
}

// Probe checks one value outside the partitioned sweep. A stored result is
// returned as is unless force is set; otherwise the oracle is called and
// the result merged into the store. Values need not be in the generator's
// sequence (e.g. "0"), but must be 1-9 digits.
func Probe(ctx context.Context, store Store, client *Client, value string, force bool) (*ProbeResult, error) {
	c, err := ParseCandidate(value)
	if err != nil {
		return nil, err
	}
	key := c.String()

	if !force {
		records, err := store.Load(ctx)
		if err != nil {
			return nil, err
		}
		if rec, ok := records[key]; ok {
			return &ProbeResult{Record: rec, Cached: true}, nil
		}
	}

	rec := client.Call(ctx, key)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := Merge(context.WithoutCancel(ctx), store, rec); err != nil {
		return nil, err
	}
	return &ProbeResult{Record: rec}, nil
}
