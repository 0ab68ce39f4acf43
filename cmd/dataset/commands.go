package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/spf13/cobra"
	"github.com/tenkdog/jarvis/lib/cache"
	"github.com/tenkdog/jarvis/lib/store"
	"io"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [dataset] [key]",
		Short: "Prints the value stored at a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), d.Get(cmd.Context(), args[1]))
		},
	}
	dumpCmd = &cobra.Command{
		Use:   "dump [dataset]",
		Short: "Prints the whole document of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			raw, err := store.Encode(d.Snapshot(cmd.Context()))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return err
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [dataset] [key] [json]",
		Short: "Replaces the value stored at a key and writes the dataset back",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any
			if err := json.Unmarshal([]byte(args[2]), &value); err != nil {
				return fmt.Errorf("value must be valid JSON: %w", err)
			}

			// never write defaults over a document that could not be read
			d, err := load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			d.Update(cmd.Context(), args[1], value)
			if o := d.FlushIfDue(cmd.Context(), true); o != cache.OutcomeWritten {
				return fmt.Errorf("dataset %s not written: %s %s", d.Name(), o, d.Status().LastError)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "set successfully")
			return err
		},
	}
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Loads all datasets and prints their diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager.RefreshAll(cmd.Context())
			return printJSON(cmd.OutOrStdout(), manager.Status())
		},
	}
)

// load forces a refresh of the dataset and fails if the remote document could not be read.
// A document that does not exist yet is only accepted if it is scheduled for creation.
func load(ctx context.Context, name string) (*cache.Dataset, error) {
	d, err := lookup(name)
	if err != nil {
		return nil, err
	}
	o := d.Refresh(ctx, true)
	if o == cache.OutcomeLoaded || o == cache.OutcomeNotModified {
		return d, nil
	}
	// a missing document is created from the defaults (see bootstrap-missing)
	if st := d.Status(); o == cache.OutcomeFailed && st.Dirty && !st.Loaded {
		return d, nil
	}
	return nil, fmt.Errorf("failed to load dataset %s: %s %s", name, o, d.Status().LastError)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
