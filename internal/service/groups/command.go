package groups

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/oshokin/intuneforge/internal/config"
	"github.com/oshokin/intuneforge/internal/graph"
	"github.com/oshokin/intuneforge/internal/logger"
)

// Options contains inputs for the groups entry point.
type Options struct {
	// ConfigPath is the path to the settings YAML file.
	ConfigPath string
	// Prefix filters groups by the start of their display name.
	Prefix string
	// AccessToken is a Graph bearer token obtained by the caller.
	AccessToken string
	// Out receives the table of groups. Defaults to stdout.
	Out io.Writer
}

var errTokenRequired = errors.New("access token must be provided")

// Run lists groups matching opts.Prefix.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "groups")

	if opts.AccessToken == "" {
		return errTokenRequired
	}

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	client := graph.New(graph.NewHTTPClient(graph.StaticToken(opts.AccessToken), cfg.Timeout), cfg.GraphURL)

	found, err := client.ListGroups(ctx, opts.Prefix)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}

	logger.DebugKV(ctx, "Groups listed", "prefix", opts.Prefix, "count", len(found))

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return Print(out, found)
}

// Print writes groups as an aligned two-column table.
func Print(out io.Writer, found []graph.Group) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "ID\tDISPLAY NAME")

	for _, group := range found {
		fmt.Fprintf(w, "%s\t%s\n", group.ID, group.DisplayName)
	}

	return w.Flush()
}
