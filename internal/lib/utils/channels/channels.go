package chans

// Notify signals ch without blocking the caller.
//
// The send is dropped if ch has no free capacity, so ch
// should be buffered when the signal must survive until
// the receiver gets around to it. A signal already
// sitting in the buffer counts as delivered.
//
// If channel is nil, does nothing.
func Notify(ch chan<- struct{}) {
	if ch == nil {
		return
	}

	select {
	case ch <- struct{}{}:
	default:
	}
}
