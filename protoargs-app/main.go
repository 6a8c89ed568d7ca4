package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tracekit/protoargs/log"
	"github.com/tracekit/protoargs/protoargs-app/config"
	"github.com/tracekit/protoargs/x/argstore"
	"github.com/tracekit/protoargs/x/extract"
	"github.com/tracekit/protoargs/x/schema"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "protoargs",
		Short: "Schema-driven trace argument extraction",
		Long: "protoargs decodes binary trace messages against runtime-loaded proto\n" +
			"descriptor sets and exposes their fields as queryable key/value rows.",
		RunE: runServe,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run:   runVersion,
	}

	decodeCmd = &cobra.Command{
		Use:   "decode <file>",
		Short: "Decode a trace file and print argument rows as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE:  runDecode,
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE:  runConfigShow,
	}
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	initCommands()
	return rootCmd.Execute()
}

func initCommands() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(decodeCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config",
		"protoargs-app/configs/config.yaml", "config file path")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "enable pretty logging")

	rootCmd.PersistentFlags().String("listen-addr", "", "API server listen address")
	rootCmd.PersistentFlags().Bool("metrics", false, "enable metrics")

	decodeCmd.Flags().String("type", "", "fully qualified message type name (required)")
	decodeCmd.Flags().StringSlice("descriptor-set", nil, "descriptor set file (repeatable, overrides config)")
	decodeCmd.Flags().Bool("framed", false, "input is a stream of length-prefixed records")
	_ = decodeCmd.MarkFlagRequired("type")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	applyFlags(cmd, cfg)

	logger := log.New(cfg.Log.Level, cfg.Log.Pretty)

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("go_version", runtime.Version()).
		Msg("Build information")

	logger.Info().
		Str("config_file", cfgFile).
		Str("listen_addr", cfg.API.ListenAddr).
		Int("descriptor_sets", len(cfg.Schema.DescriptorSets)).
		Bool("metrics_enabled", cfg.Metrics.Enabled).
		Str("log_level", cfg.Log.Level).
		Msg("Configuration loaded")

	application, err := NewApp(cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	return application.Run(cmd.Context())
}

func runVersion(*cobra.Command, []string) {
	fmt.Printf("protoargs\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Printf("Go Version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func runDecode(cmd *cobra.Command, args []string) error {
	typeName, _ := cmd.Flags().GetString("type")
	sets, _ := cmd.Flags().GetStringSlice("descriptor-set")
	framed, _ := cmd.Flags().GetBool("framed")

	cfg := config.Default()
	if loaded, err := config.Load(cfgFile); err == nil {
		cfg = loaded
	}
	if len(sets) == 0 {
		sets = cfg.Schema.DescriptorSets
	}
	if len(sets) == 0 {
		return fmt.Errorf("no descriptor sets: pass --descriptor-set or configure schema.descriptor_sets")
	}

	pool := schema.NewPool()
	for _, path := range sets {
		if err := pool.LoadFile(path); err != nil {
			return err
		}
	}

	extractCfg := cfg.Extract
	extractCfg.MetricsEnabled = false
	svc, err := extract.New(pool, extractCfg, log.Nop().Logger)
	if err != nil {
		return err
	}

	store := argstore.New()
	if framed {
		input, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer input.Close()

		if _, err := svc.IngestStream(input, typeName, store); err != nil {
			return err
		}
	} else {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if _, err := svc.DecodeMessage(data, typeName, nil, store); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	for _, row := range store.Rows() {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg)

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if f := cmd.Flags().Lookup("log-pretty"); f != nil && f.Changed {
		cfg.Log.Pretty, _ = cmd.Flags().GetBool("log-pretty")
	}
	if f := cmd.Flags().Lookup("listen-addr"); f != nil && f.Changed {
		cfg.API.ListenAddr, _ = cmd.Flags().GetString("listen-addr")
	}
	if f := cmd.Flags().Lookup("metrics"); f != nil && f.Changed {
		cfg.Metrics.Enabled, _ = cmd.Flags().GetBool("metrics")
	}
}
