package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"irbridge/internal/app"
	"irbridge/internal/config"
	"irbridge/internal/state"
	"irbridge/internal/storage"
	logx "irbridge/pkg/logx"
)

func newCheckCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config file and print the persisted state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return check(cmd.Context(), *cfgPath, cmd.OutOrStdout())
		},
	}
}

func check(ctx context.Context, cfgPath string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "config ok: %s\n", cfgPath)
	for _, d := range cfg.Devices {
		fmt.Fprintf(out, "  device %s -> %s (pub %s, sub %s)\n", d.Name, d.Broker(), d.PubTopic, d.SubTopic)
	}

	sc, err := app.StorageConfig(cfg)
	if err != nil {
		return err
	}
	store, err := storage.Open(sc, logx.Nop())
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer func() { _ = store.Close() }()

	st := state.New(store, state.Options{
		Admin:   func() int64 { return cfg.Telegram.AdminChatID },
		Devices: cfg.DeviceNames,
	}, logx.Nop()).Snapshot(ctx)

	fmt.Fprintf(out, "state ok: %s\n", sc.Path)
	fmt.Fprintf(out, "  current device: %s\n", st.Device)
	fmt.Fprintf(out, "  users: %d\n", len(st.Users))
	for dev, aliases := range st.Preference {
		fmt.Fprintf(out, "  aliases on %s: %d\n", dev, len(aliases))
	}
	return nil
}
