package session

import (
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"time"
)

var Logger = logger.GetLogger("session")

// DefaultTTL is how long a user may take to answer a prompt of the admin panel
const DefaultTTL = 180 * time.Second

// Session is the admin panel state of one user
type Session struct {
	// WaitingFor names the input the panel expects next (e.g. "admin_add_uid"), empty if none
	WaitingFor string
	// ReturnPanel is the panel to show once the input was handled
	ReturnPanel string
	// Expires is the deadline of the waiting state, zero if nothing is awaited
	Expires time.Time
	// ActivePanelMID is the message id of the panel message the user is working on
	ActivePanelMID int64
	// ActiveChatID is the managed chat the panel currently operates on
	ActiveChatID int64
}

// Waiting reports whether the session awaits an input
func (s Session) Waiting() bool {
	return s.WaitingFor != ""
}

// Manager keeps the sessions of all users in memory. Sessions are never persisted, a
// restart of the bot clears them.
type Manager struct {
	ttl      time.Duration
	now      func() time.Time
	sessions *xsync.MapOf[int64, Session]
}

// NewManager creates a session manager. A non-positive ttl selects DefaultTTL, a nil
// clock uses time.Now.
func NewManager(ttl time.Duration, now func() time.Time) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{
		ttl:      ttl,
		now:      now,
		sessions: xsync.NewMapOf[int64, Session](),
	}
}

// Get returns the session of user, creating an empty one if needed. An expired waiting
// state is cleared, the active chat and panel survive.
func (m *Manager) Get(user int64) Session {
	return m.update(user, func(*Session) {})
}

// SetWait makes the session of user await the input key and return to returnPanel afterwards
func (m *Manager) SetWait(user int64, key, returnPanel string) {
	m.update(user, func(s *Session) {
		s.WaitingFor = key
		s.ReturnPanel = returnPanel
		s.Expires = m.now().Add(m.ttl)
	})
}

// ClearWait drops the waiting state of user
func (m *Manager) ClearWait(user int64) {
	m.update(user, func(s *Session) {
		clearWait(s)
	})
}

// SetActivePanel records the panel message the user is working on
func (m *Manager) SetActivePanel(user, messageID int64) {
	m.update(user, func(s *Session) {
		s.ActivePanelMID = messageID
	})
}

// SetActiveChat selects the managed chat the panel of user operates on
func (m *Manager) SetActiveChat(user, chatID int64) {
	m.update(user, func(s *Session) {
		s.ActiveChatID = chatID
	})
}

// ActiveChat returns the chat the panel of user operates on. If none was selected yet,
// pick is asked for a default which is remembered when non-zero. pick may be nil.
func (m *Manager) ActiveChat(user int64, pick func() int64) int64 {
	s := m.Get(user)
	if s.ActiveChatID != 0 || pick == nil {
		return s.ActiveChatID
	}
	chat := pick()
	if chat == 0 {
		return 0
	}
	// a concurrent selection wins over the default
	return m.update(user, func(s *Session) {
		if s.ActiveChatID == 0 {
			s.ActiveChatID = chat
		}
	}).ActiveChatID
}

// Len returns the number of known sessions
func (m *Manager) Len() int {
	return m.sessions.Size()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// update applies fn to the session of user atomically and returns the result
func (m *Manager) update(user int64, fn func(s *Session)) Session {
	s, _ := m.sessions.Compute(user, func(s Session, _ bool) (Session, bool) {
		if !s.Expires.IsZero() && m.now().After(s.Expires) {
			Logger.Debugf("waiting state %q of user %d expired", s.WaitingFor, user)
			clearWait(&s)
		}
		fn(&s)
		return s, false
	})
	return s
}

func clearWait(s *Session) {
	s.WaitingFor = ""
	s.ReturnPanel = ""
	s.Expires = time.Time{}
}
