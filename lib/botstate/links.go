package botstate

import (
	"context"
	"sort"
)

// Actions taken on the third link violation
const (
	ActionKick = "kick"
	ActionBan  = "ban"
)

// LinkSettings configures the link moderation of one chat
type LinkSettings struct {
	Enabled     bool
	MuteDays    int
	ThirdAction string
}

// DefaultLinkSettings applies to chats without stored settings
func DefaultLinkSettings() LinkSettings {
	return LinkSettings{Enabled: true, MuteDays: 1, ThirdAction: ActionKick}
}

// LinkSettings returns the settings of chat. Missing values are filled with the defaults,
// an unknown third action reads as kick.
func (s *State) LinkSettings(ctx context.Context, chat int64) LinkSettings {
	raw := asMap(asMap(s.ds.Get(ctx, CoreDataset, KeyLinkSettings))[idKey(chat)])
	ls := DefaultLinkSettings()
	if v, ok := raw["enabled"]; ok {
		ls.Enabled = toBool(v, true)
	}
	if v, ok := raw["mute_days"]; ok {
		if n, ok := toInt(v); ok {
			ls.MuteDays = int(n)
		}
	}
	if a := toString(raw["third_action"]); a == ActionBan {
		ls.ThirdAction = ActionBan
	}
	return ls
}

// SetLinkSettings stores the settings of chat. A non-positive mute duration is stored as
// one day, any third action other than ban as kick.
func (s *State) SetLinkSettings(ctx context.Context, chat int64, ls LinkSettings) {
	if ls.MuteDays <= 0 {
		ls.MuteDays = 1
	}
	if ls.ThirdAction != ActionBan {
		ls.ThirdAction = ActionKick
	}
	s.ds.Modify(ctx, CoreDataset, KeyLinkSettings, func(cur any) (any, bool) {
		settings := asMap(cur)
		settings[idKey(chat)] = map[string]any{
			"enabled":      ls.Enabled,
			"mute_days":    ls.MuteDays,
			"third_action": ls.ThirdAction,
		}
		return settings, true
	})
}

// --------------------------------------------------------------------------
// Whitelist
// --------------------------------------------------------------------------

// WhitelistEntry is a user allowed to post links in a chat
type WhitelistEntry struct {
	UserID    string
	AddedBy   int64
	AddedTime string
}

func (s *State) IsWhitelisted(ctx context.Context, chat, user int64) bool {
	bucket := asMap(asMap(s.ds.Get(ctx, CoreDataset, KeyLinkWhitelist))[idKey(chat)])
	_, ok := bucket[idKey(user)]
	return ok
}

// Whitelist returns the whitelist of chat, most recently added first
func (s *State) Whitelist(ctx context.Context, chat int64) []WhitelistEntry {
	bucket := asMap(asMap(s.ds.Get(ctx, CoreDataset, KeyLinkWhitelist))[idKey(chat)])
	out := make([]WhitelistEntry, 0, len(bucket))
	for uid, v := range bucket {
		rec := asMap(v)
		addedBy, _ := toInt(rec["added_by"])
		out = append(out, WhitelistEntry{UserID: uid, AddedBy: addedBy, AddedTime: toString(rec["added_time"])})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedTime != out[j].AddedTime {
			return out[i].AddedTime > out[j].AddedTime
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// WhitelistAdd allows user to post links in chat. It returns false if user is already listed.
func (s *State) WhitelistAdd(ctx context.Context, chat, user, addedBy int64) bool {
	added := false
	s.ds.Modify(ctx, CoreDataset, KeyLinkWhitelist, func(cur any) (any, bool) {
		wl := asMap(cur)
		bucket := asMap(wl[idKey(chat)])
		if _, ok := bucket[idKey(user)]; ok {
			return nil, false
		}
		bucket[idKey(user)] = map[string]any{"added_by": addedBy, "added_time": s.Timestamp()}
		wl[idKey(chat)] = bucket
		added = true
		return wl, true
	})
	return added
}

// WhitelistRemove removes user from the whitelist of chat, dropping the chat once empty.
// It returns false if user was not listed.
func (s *State) WhitelistRemove(ctx context.Context, chat, user int64) bool {
	return s.ds.Modify(ctx, CoreDataset, KeyLinkWhitelist, func(cur any) (any, bool) {
		return removeFromBucket(asMap(cur), idKey(chat), idKey(user))
	})
}

// --------------------------------------------------------------------------
// Violations
// --------------------------------------------------------------------------

// Violation is the link violation record of one user in a chat
type Violation struct {
	UserID   string
	Count    int
	LastTime string
}

func (s *State) ViolationCount(ctx context.Context, chat, user int64) int {
	bucket := asMap(asMap(s.ds.Get(ctx, RuntimeDataset, KeyLinkViolations))[idKey(chat)])
	n, _ := toInt(asMap(bucket[idKey(user)])["count"])
	return int(n)
}

// Violations returns the violation records of chat, highest count first
func (s *State) Violations(ctx context.Context, chat int64) []Violation {
	bucket := asMap(asMap(s.ds.Get(ctx, RuntimeDataset, KeyLinkViolations))[idKey(chat)])
	out := make([]Violation, 0, len(bucket))
	for uid, v := range bucket {
		rec := asMap(v)
		n, _ := toInt(rec["count"])
		out = append(out, Violation{UserID: uid, Count: int(n), LastTime: toString(rec["last_time"])})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].LastTime != out[j].LastTime {
			return out[i].LastTime > out[j].LastTime
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// IncViolation counts another violation of user in chat and returns the new count
func (s *State) IncViolation(ctx context.Context, chat, user int64) int {
	var count int64
	s.ds.Modify(ctx, RuntimeDataset, KeyLinkViolations, func(cur any) (any, bool) {
		vio := asMap(cur)
		bucket := asMap(vio[idKey(chat)])
		count, _ = toInt(asMap(bucket[idKey(user)])["count"])
		count++
		bucket[idKey(user)] = map[string]any{"count": count, "last_time": s.Timestamp()}
		vio[idKey(chat)] = bucket
		return vio, true
	})
	return int(count)
}

// ClearViolation drops the record of user in chat. It returns false if there was none.
func (s *State) ClearViolation(ctx context.Context, chat, user int64) bool {
	return s.ds.Modify(ctx, RuntimeDataset, KeyLinkViolations, func(cur any) (any, bool) {
		return removeFromBucket(asMap(cur), idKey(chat), idKey(user))
	})
}

// removeFromBucket deletes m[bucket][key] and drops the bucket once it is empty
func removeFromBucket(m map[string]any, bucket, key string) (any, bool) {
	b := asMap(m[bucket])
	if _, ok := b[key]; !ok {
		return nil, false
	}
	delete(b, key)
	if len(b) == 0 {
		delete(m, bucket)
	} else {
		m[bucket] = b
	}
	return m, true
}
