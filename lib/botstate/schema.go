package botstate

import (
	"github.com/tenkdog/jarvis/lib/cache"
)

// Dataset names as registered at the cache manager
const (
	CoreDataset    = "core"
	RuntimeDataset = "runtime"
)

// Keys of the core document
const (
	KeyAdmins           = "admins"
	KeyThreadsJarvis    = "allowed_threads_jarvis"
	KeyThreadsSparkSign = "allowed_threads_sparksign"
	KeyLinkSettings     = "link_settings"  // {chat: {enabled, mute_days, third_action}}
	KeyLinkWhitelist    = "link_whitelist" // {chat: {user: {added_by, added_time}}}
)

// Keys of the runtime document
const (
	KeyLinkViolations = "link_violations" // {chat: {user: {count, last_time}}}
	KeyAdminLogs      = "admin_logs"
)

// DefaultSuperAdmin is the administrator a freshly created core document starts with
const DefaultSuperAdmin int64 = 8126033106

// CoreSchema describes the core document. The admins default holds superAdmin, stamped
// with the time returned by stamp.
func CoreSchema(superAdmin int64, stamp func() string) cache.Schema {
	return cache.Schema{Fields: []cache.Field{
		{Key: KeyAdmins, Kind: cache.KindMap, Default: func() any {
			return map[string]any{
				idKey(superAdmin): map[string]any{
					"added_by":   "system",
					"added_time": stamp(),
					"is_super":   true,
				},
			}
		}},
		{Key: KeyThreadsJarvis, Kind: cache.KindMap, Aliases: []string{"allowed_threads_mark", "allowed_threads"}},
		{Key: KeyThreadsSparkSign, Kind: cache.KindMap},
		{Key: KeyLinkSettings, Kind: cache.KindMap},
		{Key: KeyLinkWhitelist, Kind: cache.KindMap},
	}}
}

// RuntimeSchema describes the runtime document
func RuntimeSchema() cache.Schema {
	return cache.Schema{Fields: []cache.Field{
		{Key: KeyLinkViolations, Kind: cache.KindMap},
		{Key: KeyAdminLogs, Kind: cache.KindList},
	}}
}
