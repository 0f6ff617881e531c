package ingest

// idOrder serializes dispatches sharing a document identifier, in input order.
// It is only used from the goroutine iterating over the input units.
type idOrder struct {
	last map[string]chan struct{}
}

func newIDOrder() *idOrder {
	return &idOrder{last: make(map[string]chan struct{})}
}

// enter registers a dispatch touching ids. The dispatch must wait on every returned channel
// before starting, and close done once finished.
func (o *idOrder) enter(ids []string) (wait []chan struct{}, done chan struct{}) {
	done = make(chan struct{})
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if prev, ok := o.last[id]; ok {
			wait = append(wait, prev)
		}
		o.last[id] = done
	}
	return wait, done
}
