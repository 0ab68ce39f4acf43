package botstate

import (
	"context"
	"errors"
	"github.com/lni/dragonboat/v4/logger"
	"sort"
	"strings"
	"time"
)

var Logger = logger.GetLogger("botstate")

// DefaultTimezone is the zone all stored timestamps are rendered in
const DefaultTimezone = "Asia/Taipei"

// timestampLayout matches the ISO 8601 form with microseconds and offset
const timestampLayout = "2006-01-02T15:04:05.000000-07:00"

var (
	ErrNotAdmin     = errors.New("target is not an admin")
	ErrSuperAdmin   = errors.New("super admins cannot be removed")
	ErrNoPermission = errors.New("remover is not an admin")
	ErrUnknownScope = errors.New("unknown thread scope")
)

// IDatasets is the part of the cache manager the state is built on
type IDatasets interface {
	Get(ctx context.Context, dataset, key string) any
	Modify(ctx context.Context, dataset, key string, fn func(current any) (any, bool)) bool
}

// State is the typed data access layer of the bot. It reads and mutates the core and the
// runtime dataset through the cache manager and never talks to the chat platform.
type State struct {
	ds       IDatasets
	location *time.Location
	now      func() time.Time
}

// New creates the state on top of ds. A nil location selects UTC, a nil clock time.Now.
func New(ds IDatasets, location *time.Location, now func() time.Time) *State {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &State{ds: ds, location: location, now: now}
}

// Timestamp renders the current time in the configured zone, the format of every stored time
func (s *State) Timestamp() string {
	return s.now().In(s.location).Format(timestampLayout)
}

// --------------------------------------------------------------------------
// Admins
// --------------------------------------------------------------------------

// Admin is one entry of the admin list
type Admin struct {
	ID        string
	AddedBy   string // "system" or the id of the admin who added this one
	AddedTime string
	IsSuper   bool
}

// Admins returns all admins ordered by id
func (s *State) Admins(ctx context.Context) []Admin {
	admins := asMap(s.ds.Get(ctx, CoreDataset, KeyAdmins))
	out := make([]Admin, 0, len(admins))
	for id, v := range admins {
		info := asMap(v)
		out = append(out, Admin{
			ID:        id,
			AddedBy:   toString(info["added_by"]),
			AddedTime: toString(info["added_time"]),
			IsSuper:   toBool(info["is_super"], false),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *State) IsAdmin(ctx context.Context, user int64) bool {
	_, ok := asMap(s.ds.Get(ctx, CoreDataset, KeyAdmins))[idKey(user)]
	return ok
}

func (s *State) IsSuperAdmin(ctx context.Context, user int64) bool {
	info := asMap(asMap(s.ds.Get(ctx, CoreDataset, KeyAdmins))[idKey(user)])
	return toBool(info["is_super"], false)
}

// AddAdmin adds user as a regular admin. It returns false if user already is an admin.
func (s *State) AddAdmin(ctx context.Context, user, addedBy int64) bool {
	added := false
	s.ds.Modify(ctx, CoreDataset, KeyAdmins, func(cur any) (any, bool) {
		admins := asMap(cur)
		if _, ok := admins[idKey(user)]; ok {
			return nil, false
		}
		admins[idKey(user)] = map[string]any{
			"added_by":   addedBy,
			"added_time": s.Timestamp(),
			"is_super":   false,
		}
		added = true
		return admins, true
	})
	return added
}

// RemoveAdmin removes user from the admins. Super admins cannot be removed, and only
// admins may remove admins.
func (s *State) RemoveAdmin(ctx context.Context, user, removedBy int64) error {
	var err error
	s.ds.Modify(ctx, CoreDataset, KeyAdmins, func(cur any) (any, bool) {
		admins := asMap(cur)
		target, ok := admins[idKey(user)]
		switch {
		case !ok:
			err = ErrNotAdmin
		case toBool(asMap(target)["is_super"], false):
			err = ErrSuperAdmin
		default:
			if _, ok := admins[idKey(removedBy)]; !ok {
				err = ErrNoPermission
			}
		}
		if err != nil {
			return nil, false
		}
		delete(admins, idKey(user))
		return admins, true
	})
	return err
}

// --------------------------------------------------------------------------
// Threads
// --------------------------------------------------------------------------

// Scope selects the feature a forum thread is enabled for
type Scope string

const (
	ScopeJarvis    Scope = "jarvis"
	ScopeSparkSign Scope = "sparksign"
)

func (sc Scope) key() (string, bool) {
	switch sc {
	case ScopeJarvis:
		return KeyThreadsJarvis, true
	case ScopeSparkSign:
		return KeyThreadsSparkSign, true
	}
	return "", false
}

func threadKey(chat, thread int64) string {
	return idKey(chat) + "_" + idKey(thread)
}

// Threads returns the enabled "<chat>_<thread>" keys of scope in order
func (s *State) Threads(ctx context.Context, scope Scope) []string {
	key, ok := scope.key()
	if !ok {
		return nil
	}
	threads := asMap(s.ds.Get(ctx, CoreDataset, key))
	out := make([]string, 0, len(threads))
	for k := range threads {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *State) ThreadAllowed(ctx context.Context, scope Scope, chat, thread int64) bool {
	key, ok := scope.key()
	if !ok {
		return false
	}
	_, ok = asMap(s.ds.Get(ctx, CoreDataset, key))[threadKey(chat, thread)]
	return ok
}

// ToggleThread enables (add) or disables a thread for scope. Disabling a thread that is
// not enabled returns false.
func (s *State) ToggleThread(ctx context.Context, scope Scope, chat, thread int64, add bool) (bool, error) {
	key, ok := scope.key()
	if !ok {
		return false, ErrUnknownScope
	}
	changed := false
	s.ds.Modify(ctx, CoreDataset, key, func(cur any) (any, bool) {
		threads := asMap(cur)
		k := threadKey(chat, thread)
		if add {
			threads[k] = true
		} else {
			if _, ok := threads[k]; !ok {
				return nil, false
			}
			delete(threads, k)
		}
		changed = true
		return threads, true
	})
	return changed, nil
}

// --------------------------------------------------------------------------
// Managed Chats
// --------------------------------------------------------------------------

// ManagedChatIDs returns every supergroup (id prefix -100) the bot holds data for: chats
// with enabled threads, link settings, whitelist entries or violations. Ascending order.
func (s *State) ManagedChatIDs(ctx context.Context) []int64 {
	seen := map[int64]struct{}{}
	add := func(raw string) {
		if id, ok := toInt(raw); ok && strings.HasPrefix(idKey(id), "-100") {
			seen[id] = struct{}{}
		}
	}

	for _, scope := range []Scope{ScopeJarvis, ScopeSparkSign} {
		for _, k := range s.Threads(ctx, scope) {
			chat, _, _ := strings.Cut(k, "_")
			add(chat)
		}
	}
	for _, ds := range []struct{ dataset, key string }{
		{CoreDataset, KeyLinkSettings},
		{CoreDataset, KeyLinkWhitelist},
		{RuntimeDataset, KeyLinkViolations},
	} {
		for k := range asMap(s.ds.Get(ctx, ds.dataset, ds.key)) {
			add(k)
		}
	}

	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
