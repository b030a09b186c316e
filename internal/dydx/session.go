package dydx

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const addressPrefix = "dydx1"

// Session owns the process-wide wallet identity and the one piece of shared
// mutable state order flows touch: the transaction sequence number. Clients
// behind it are initialized lazily, exactly once, at the session boundary.
type Session struct {
	address          string
	subaccountNumber uint32

	initMu  sync.Mutex
	ready   bool
	connect func(ctx context.Context) error

	seqMu    sync.Mutex
	sequence uint64
}

// NewSession validates the wallet identity up front. The mnemonic itself is
// handed to the signing collaborator and never retained here.
func NewSession(address, mnemonic string, subaccountNumber uint32, connect func(ctx context.Context) error) (*Session, error) {
	address = strings.TrimSpace(address)
	if address == "" || !strings.HasPrefix(address, addressPrefix) {
		return nil, &InvalidWalletError{Address: address}
	}

	words := strings.Fields(mnemonic)
	switch len(words) {
	case 12, 15, 18, 21, 24:
	default:
		return nil, &InvalidMnemonicError{WordCount: len(words)}
	}

	if connect == nil {
		connect = func(ctx context.Context) error { return nil }
	}

	return &Session{
		address:          address,
		subaccountNumber: subaccountNumber,
		connect:          connect,
	}, nil
}

func (s *Session) Address() string {
	return s.address
}

func (s *Session) SubaccountNumber() uint32 {
	return s.subaccountNumber
}

// EnsureReady runs the session's connect step until it first succeeds, then
// never again. Every entry point into order flows goes through this gate
// rather than re-checking client state inline. A failed connect is not
// terminal; the next call retries it.
func (s *Session) EnsureReady(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.ready {
		return nil
	}

	if err := s.connect(ctx); err != nil {
		return err
	}

	s.ready = true
	logrus.WithField("address", s.address).Info("session ready")

	return nil
}

// Sequence returns the current transaction sequence number.
func (s *Session) Sequence() uint64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	return s.sequence
}

// IncrementSequence advances the sequence counter after a successful
// submission. Concurrent submissions from the same wallet serialize here to
// avoid sequence collisions.
func (s *Session) IncrementSequence() uint64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.sequence++
	return s.sequence
}
