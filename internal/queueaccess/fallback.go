package queueaccess

import (
	"errors"
	"fmt"

	"fieldsync/internal/config"
	"fieldsync/internal/ipc"
	"fieldsync/internal/queue"
)

// Session pairs an Access with whatever must be released after use.
type Session struct {
	Access Access
	close  func() error
}

// Close releases the socket connection or the store handle.
func (s Session) Close() error {
	if s.close != nil {
		return s.close()
	}
	return nil
}

// OpenWithFallback prefers the running daemon so queue edits go through the
// process that is replaying. When dial fails the queue file is opened
// directly; WAL mode lets a late-starting daemon share it.
func OpenWithFallback(dial func() (*ipc.Client, error), openStore func() (*queue.Store, error)) (Session, error) {
	if dial != nil {
		client, err := dial()
		if err == nil {
			return Session{Access: NewIPCAccess(client), close: client.Close}, nil
		}
	}
	if openStore == nil {
		return Session{}, errors.New("open queue store: no daemon reachable and no store opener")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{Access: NewStoreAccess(store), close: store.Close}, nil
}

// OpenForConfig uses the daemon socket and queue file named by cfg.
func OpenForConfig(cfg *config.Config) (Session, error) {
	return OpenWithFallback(
		func() (*ipc.Client, error) { return ipc.Dial(cfg.SocketPath()) },
		func() (*queue.Store, error) { return queue.Open(cfg) },
	)
}
