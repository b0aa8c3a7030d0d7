// README: Latest-value delivery for capacity-1 subscriber channels.
package notify

// Latest puts v in ch, replacing any value the reader has not taken yet.
// ch must have capacity 1. It never blocks.
func Latest[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
