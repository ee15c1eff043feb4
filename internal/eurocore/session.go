package eurocore

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	logx "eurobot/pkg/logx"
)

// Session is one user's authenticated state against the eurocore API.
// Credential material lives only in process memory.
type Session struct {
	Identity int64 // chat-platform user id
	Username string
	password string
	Token    string
	IssuedAt time.Time
}

// Credentials is what a credential provider collects from the user.
type Credentials struct {
	Username string
	Password string
}

// CredentialProvider obtains credentials interactively. It is a suspend
// point: the implementation may wait on a user form before returning.
type CredentialProvider func(ctx context.Context) (Credentials, error)

// SessionStore keeps at most one live session per identity and renews stale
// tokens. Per-identity operations are serialized so concurrent callers never
// trigger duplicate sign-ins.
type SessionStore struct {
	client *Client
	log    logx.Logger

	mu  sync.Mutex
	ttl time.Duration
	m   map[int64]*sessionEntry
}

type sessionEntry struct {
	mu sync.Mutex
	s  *Session
}

// snapshotLocked copies the stored session so renewals never mutate a value
// a caller still holds. The caller holds e.mu.
func (e *sessionEntry) snapshotLocked() *Session {
	cp := *e.s
	return &cp
}

func NewSessionStore(client *Client, ttl time.Duration, log logx.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &SessionStore{
		client: client,
		log:    log,
		ttl:    ttl,
		m:      map[int64]*sessionEntry{},
	}
}

// Apply updates the session TTL on config reload.
func (st *SessionStore) Apply(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	st.mu.Lock()
	st.ttl = ttl
	st.mu.Unlock()
}

func (st *SessionStore) entry(identity int64) (*sessionEntry, time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.m[identity]
	if !ok {
		e = &sessionEntry{}
		st.m[identity] = e
	}
	return e, st.ttl
}

// Has reports whether a session exists for identity, fresh or not.
func (st *SessionStore) Has(identity int64) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.m[identity]
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s != nil
}

// GetOrCreate returns the cached session for identity, renewing a stale
// token in place. Without a cached session it invokes provider to collect
// credentials and signs in. The provider is never called while a cached
// session exists, even a stale one. The returned session is a snapshot;
// later renewals do not change it.
func (st *SessionStore) GetOrCreate(ctx context.Context, identity int64, provider CredentialProvider) (*Session, error) {
	e, ttl := st.entry(identity)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.s != nil {
		if err := st.renewLocked(ctx, e, ttl); err != nil {
			return nil, err
		}
		return e.snapshotLocked(), nil
	}

	if provider == nil {
		return nil, errors.Mark(errors.New("no session and no credential provider"), ErrAuthentication)
	}
	creds, err := provider(ctx)
	if err != nil {
		return nil, err
	}

	acc, err := st.client.Login(ctx, creds.Username, creds.Password)
	if err != nil {
		return nil, err
	}
	e.s = &Session{
		Identity: identity,
		Username: acc.Username,
		password: creds.Password,
		Token:    acc.Token,
		IssuedAt: time.Now(),
	}
	st.log.Info("session created", logx.Int64("identity", identity), logx.String("username", acc.Username))
	return e.snapshotLocked(), nil
}

// Register creates a remote account and caches the resulting session.
func (st *SessionStore) Register(ctx context.Context, identity int64, creds Credentials) (*Session, error) {
	e, _ := st.entry(identity)
	e.mu.Lock()
	defer e.mu.Unlock()

	acc, err := st.client.Register(ctx, creds.Username, creds.Password)
	if err != nil {
		return nil, err
	}
	e.s = &Session{
		Identity: identity,
		Username: acc.Username,
		password: creds.Password,
		Token:    acc.Token,
		IssuedAt: time.Now(),
	}
	st.log.Info("account registered", logx.Int64("identity", identity), logx.String("username", acc.Username))
	return e.snapshotLocked(), nil
}

// RefreshIfStale re-authenticates the identity's session when the token is
// older than the TTL. With a fresh token it is a no-op. At most one renewal
// call runs per identity regardless of concurrent callers.
func (st *SessionStore) RefreshIfStale(ctx context.Context, identity int64) (*Session, error) {
	e, ttl := st.entry(identity)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.s == nil {
		return nil, errors.Mark(errors.Newf("no session for identity %d", identity), ErrAuthentication)
	}
	if err := st.renewLocked(ctx, e, ttl); err != nil {
		return nil, err
	}
	return e.snapshotLocked(), nil
}

// renewLocked renews e.s when stale. The caller holds e.mu. A failed renewal
// leaves the prior token untouched; the session stays unusable until the
// user signs in again.
func (st *SessionStore) renewLocked(ctx context.Context, e *sessionEntry, ttl time.Duration) error {
	s := e.s
	if time.Since(s.IssuedAt) <= ttl {
		return nil
	}

	acc, err := st.client.Login(ctx, s.Username, s.password)
	if err != nil {
		st.log.Warn("session renewal failed",
			logx.Int64("identity", s.Identity),
			logx.String("username", s.Username),
			logx.Err(err),
		)
		return err
	}
	s.Token = acc.Token
	s.IssuedAt = time.Now()
	st.log.Info("session renewed", logx.Int64("identity", s.Identity), logx.String("username", acc.Username))
	return nil
}
