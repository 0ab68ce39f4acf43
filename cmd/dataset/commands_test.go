package dataset

import (
	"bytes"
	"github.com/spf13/viper"
	"strings"
	"testing"
)

// execute runs the dataset command group on the in-memory backend. Every invocation starts
// with an empty store.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	DatasetCommands.SetOut(&out)
	DatasetCommands.SetErr(&out)
	DatasetCommands.SetArgs(append(args, "--backend", "memory", "--timezone", "UTC"))
	err := DatasetCommands.Execute()
	return out.String(), err
}

func TestGetBootstrapsMissingDocument(t *testing.T) {
	out, err := execute(t, "get", "core", "admins")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	for _, want := range []string{`"8126033106"`, `"is_super": true`, `"added_by": "system"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %s in output:\n%s", want, out)
		}
	}
}

func TestSet(t *testing.T) {
	out, err := execute(t, "set", "runtime", "admin_logs", `[{"action":"test"}]`)
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if !strings.Contains(out, "set successfully") {
		t.Errorf("unexpected output %q", out)
	}

	if _, err := execute(t, "set", "runtime", "admin_logs", `{not json`); err == nil || !strings.Contains(err.Error(), "valid JSON") {
		t.Errorf("Expected JSON error, got %v", err)
	}
}

func TestUnknownDataset(t *testing.T) {
	_, err := execute(t, "dump", "nope")
	if err == nil || !strings.Contains(err.Error(), `unknown dataset "nope" (one of core, runtime)`) {
		t.Errorf("Expected unknown dataset error, got %v", err)
	}
}
