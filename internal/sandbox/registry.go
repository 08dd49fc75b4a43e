package sandbox

import (
	"context"
	"sync"
)

type session struct {
	cancel context.CancelFunc
}

// Registry tracks the live decode session per document. Opening a
// new session for a document supersedes the previous one: the old
// run is cancelled so it stops reading and reports Cancelled, which
// is never shown to the user. Closing a document cancels its
// session outright.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*session),
	}
}

// Begin opens a session for the document, cancelling any session
// already registered under the same identity. The returned context
// governs the decode run; the caller must call the release func
// when the run finishes.
func (self *Registry) Begin(ctx context.Context, document string) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(ctx)
	current := &session{cancel: cancel}

	self.mu.Lock()
	if prev, pres := self.sessions[document]; pres {
		prev.cancel()
	}
	self.sessions[document] = current
	self.mu.Unlock()

	release := func() {
		self.mu.Lock()
		// Only remove the entry if it is still ours - a newer
		// session may have superseded this one already.
		if self.sessions[document] == current {
			delete(self.sessions, document)
		}
		self.mu.Unlock()
		cancel()
	}

	return runCtx, release
}

// Close cancels the session for a document, if one is live.
func (self *Registry) Close(document string) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if live, pres := self.sessions[document]; pres {
		live.cancel()
		delete(self.sessions, document)
	}
}

// CloseAll cancels every live session.
func (self *Registry) CloseAll() {
	self.mu.Lock()
	defer self.mu.Unlock()

	for document, live := range self.sessions {
		live.cancel()
		delete(self.sessions, document)
	}
}
