package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `Inspect or change Parley settings.

  parley config                      print every setting
  parley config <key>                print one setting
  parley config <key> <value>        change a setting and save it

Settings live in ~/.config/parley/config.yaml; a .parley.yaml in the
project tree overrides them.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			printAllSettings(cfg)
		case 1:
			printSetting(cfg, args[0])
		default:
			storeSetting(cfg, args[0], args[1])
		}
	},
}

// printAllSettings dumps every key, masking the API key.
func printAllSettings(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s\n", maskKey(cfg.Anthropic.APIKey))
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("anthropic.use_aws_bedrock: %t\n", cfg.Anthropic.UseAWSBedrock)
	fmt.Printf("server.addr: %s\n", cfg.Server.Addr)
	fmt.Printf("scheduler.concurrency: %d\n", cfg.Scheduler.Concurrency)
	fmt.Printf("scheduler.task_timeout: %s\n", cfg.Scheduler.TaskTimeout)
	fmt.Printf("resolver.confidence_threshold: %g\n", cfg.Resolver.ConfidenceThreshold)
	fmt.Printf("resolver.escalate_validation_failures: %t\n", cfg.Resolver.EscalateValidationFailures)
	fmt.Printf("resolver.history_depth: %d\n", cfg.Resolver.HistoryDepth)
	fmt.Printf("store.path: %s\n", orUnset(cfg.Store.Path))
	fmt.Printf("store.seed_demo_data: %t\n", cfg.Store.SeedDemoData)
	fmt.Printf("intents.overlay_path: %s\n", orUnset(cfg.Intents.OverlayPath))
}

func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return "****"
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func printSetting(cfg *config.Config, key string) {
	value, err := lookupSetting(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// storeSetting applies one key=value change and writes the user config.
func storeSetting(cfg *config.Config, key, value string) {
	if err := applySetting(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "save config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s = %s\n", key, value)
}

// lookupSetting resolves a dot-notation key to its display value.
func lookupSetting(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return maskKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.use_aws_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseAWSBedrock), nil
	case "server.addr":
		return cfg.Server.Addr, nil
	case "scheduler.concurrency":
		return strconv.Itoa(cfg.Scheduler.Concurrency), nil
	case "scheduler.task_timeout":
		return cfg.Scheduler.TaskTimeout.String(), nil
	case "resolver.confidence_threshold":
		return strconv.FormatFloat(cfg.Resolver.ConfidenceThreshold, 'g', -1, 64), nil
	case "resolver.escalate_validation_failures":
		return strconv.FormatBool(cfg.Resolver.EscalateValidationFailures), nil
	case "resolver.history_depth":
		return strconv.Itoa(cfg.Resolver.HistoryDepth), nil
	case "store.path":
		return orUnset(cfg.Store.Path), nil
	case "store.seed_demo_data":
		return strconv.FormatBool(cfg.Store.SeedDemoData), nil
	case "intents.overlay_path":
		return orUnset(cfg.Intents.OverlayPath), nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// applySetting validates and applies a dot-notation key change in memory.
func applySetting(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_aws_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		cfg.Anthropic.UseAWSBedrock = b
	case "server.addr":
		cfg.Server.Addr = value
	case "scheduler.concurrency":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid concurrency: %s", value)
		}
		cfg.Scheduler.Concurrency = n
	case "scheduler.task_timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.Scheduler.TaskTimeout = d
	case "resolver.confidence_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 1 {
			return fmt.Errorf("invalid threshold (want 0..1): %s", value)
		}
		cfg.Resolver.ConfidenceThreshold = f
	case "resolver.escalate_validation_failures":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		cfg.Resolver.EscalateValidationFailures = b
	case "resolver.history_depth":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid history depth: %s", value)
		}
		cfg.Resolver.HistoryDepth = n
	case "store.path":
		cfg.Store.Path = value
	case "store.seed_demo_data":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		cfg.Store.SeedDemoData = b
	case "intents.overlay_path":
		cfg.Intents.OverlayPath = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
