package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/williamokano/site_backuper/pkg/config"
	"github.com/williamokano/site_backuper/pkg/keeper"
	"github.com/williamokano/site_backuper/pkg/logger"
	"github.com/williamokano/site_backuper/pkg/metrics"
	"github.com/williamokano/site_backuper/pkg/publish"
	"github.com/williamokano/site_backuper/pkg/storage"
)

// buildKeeper loads and validates config, initializes logging and
// wires the keeper with the first enabled storage destination.
func buildKeeper(cmd *cobra.Command) (*keeper.Keeper, func(), error) {
	configFile, _ := cmd.Flags().GetString("config")

	if err := config.Validate(configFile); err != nil {
		return nil, nil, err
	}

	cfg, err := config.ParseConfig(configFile)
	if err != nil {
		return nil, nil, err
	}

	logger.InitWithFile(cfg.GetLogLevel(), cfg.GetLogFormat(), cfg.LogFile)
	log := logger.Get()

	factory := storage.NewFactory()
	store, err := factory.CreateFirstEnabled(cmd.Context(), cfg.Storage.Destinations)
	if err != nil {
		return nil, nil, err
	}

	records, err := metrics.NewStore(cfg.GetStateDir(), *log)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	var publisher publish.Publisher = publish.Noop{}
	if cfg.Publish != nil {
		publisher = publish.NewGit(cfg.Publish.Remote, cfg.Publish.Branch,
			cfg.Publish.GetPublishWorkdir(), cfg.SiteDir, *log)
	}

	k, err := keeper.New(cmd.Context(), cfg, store, publisher, records, *log)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	cleanup := func() { store.Close() }
	return k, cleanup, nil
}

// operationContext applies the --timeout flag to the command context
func operationContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout > 0 {
		return context.WithTimeout(cmd.Context(), timeout)
	}
	return context.WithCancel(cmd.Context())
}

func printRecord(out io.Writer, rec *metrics.Record) {
	if rec == nil {
		return
	}
	fmt.Fprintf(out, "%s %s: %d files, %d bytes in %s\n",
		rec.Kind, rec.Status, rec.FileCount, rec.BytesTransferred,
		rec.Duration().Round(time.Millisecond))
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
