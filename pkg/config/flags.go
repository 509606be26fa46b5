package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

var configFilePath = flag.String("config_file", "config.txtpb", "Path to the configuration file.")

// parseConfig decodes a .txtpb config into a message of the config schema.
func parseConfig(configBytes []byte) (protoreflect.Message, error) {
	schema, err := configSchema()
	if err != nil {
		return nil, err
	}
	conf := dynamicpb.NewMessage(schema)
	if err := prototext.Unmarshal(configBytes, conf); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return conf, nil
}

// InitFlags initializes the flags from the config file specified by the -config_file flag.
// It should be called after defining all flags and before using them.
// Assumes config file doesn't have repeated/map fields.
func InitFlags() {
	flag.Parse()

	if *configFilePath == "" {
		slog.Info("Config file not specified. Skipping config initialization.")
		return
	}

	// Read config file.
	configFile, err := os.Open(*configFilePath)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Config file does not exist.", "path", *configFilePath, "error", err)
		return
	}
	if err != nil { // If the config file cannot be opened, we skip loading and use default flag values.
		slog.Error("Failed to open config file.", "error", err)
		return
	}
	configBytes, err := io.ReadAll(configFile)
	_ = configFile.Close()
	if err != nil {
		slog.Error("Failed to read config file.", "error", err)
		return
	}

	// Apply configurations.
	conf, err := parseConfig(configBytes)
	if err != nil {
		slog.Error("Failed to parse config file.", "error", err)
		return
	}
	if err := setConfigFlags(conf); err != nil {
		slog.Error("Failed to set flags from config file.", "error", err)
		return
	}
	// Command line flags win over the config file.
	flag.Parse()
}
