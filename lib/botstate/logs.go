package botstate

import (
	"context"
	"encoding/json"
)

// MaxLogEntries is the number of audit log entries kept, older ones are dropped
const MaxLogEntries = 200

// LogEntry is one entry of the admin audit log
type LogEntry struct {
	Timestamp  string `json:"timestamp"`
	AdminID    int64  `json:"admin_id"`
	AdminName  string `json:"admin_name"`
	Action     string `json:"action"`
	TargetID   *int64 `json:"target_id"`
	TargetName string `json:"target_name,omitempty"`
	Details    string `json:"details,omitempty"`
}

// LogAction appends e to the audit log, stamping it with the current time. An empty admin
// name is replaced by the admin id.
func (s *State) LogAction(ctx context.Context, e LogEntry) {
	e.Timestamp = s.Timestamp()
	if e.AdminName == "" {
		e.AdminName = idKey(e.AdminID)
	}
	s.ds.Modify(ctx, RuntimeDataset, KeyAdminLogs, func(cur any) (any, bool) {
		logs := append(asList(cur), e)
		if len(logs) > MaxLogEntries {
			logs = logs[len(logs)-MaxLogEntries:]
		}
		return logs, true
	})
}

// Logs returns the audit log, oldest entry first. Entries that cannot be read are skipped.
func (s *State) Logs(ctx context.Context) []LogEntry {
	raw := asList(s.ds.Get(ctx, RuntimeDataset, KeyAdminLogs))
	out := make([]LogEntry, 0, len(raw))
	for _, v := range raw {
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal(b, &e); err != nil {
			Logger.Debugf("skipping unreadable log entry: %v", err)
			continue
		}
		out = append(out, e)
	}
	return out
}
