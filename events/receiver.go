package events

import "sync"

// Receiver fans every event out to all listeners. Send blocks until each
// listener took the event, so listeners must drain their channel until
// Close.
type Receiver struct {
	mu        sync.Mutex
	listeners []chan interface{}
}

func New() *Receiver {
	return &Receiver{
		listeners: make([]chan interface{}, 0),
	}
}

func (er *Receiver) Listen() <-chan interface{} {
	er.mu.Lock()
	defer er.mu.Unlock()

	ch := make(chan interface{}, 64)
	er.listeners = append(er.listeners, ch)
	return ch
}

func (er *Receiver) Send(event interface{}) {
	er.mu.Lock()
	defer er.mu.Unlock()

	for _, ch := range er.listeners {
		ch <- event
	}
}

func (er *Receiver) Close() {
	er.mu.Lock()
	defer er.mu.Unlock()

	for _, ch := range er.listeners {
		close(ch)
	}
	er.listeners = make([]chan interface{}, 0)
}
