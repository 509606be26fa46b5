// Twine uses flags and a single config file for configuration.
// A config file is stored in .txtpb format and contains the values that can be set via flags.
// The schema is the `twine.config.Config` message of proto/config.proto, compiled at runtime. Every leaf field is
// named after the command line flag it sets; nested messages only group related flags together.

package config

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bufbuild/protocompile"
	twinepb "github.com/nobletooth/twine/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const durationFullName = "google.protobuf.Duration"

// skippedProtobufFlags is the list of command line flags on which the protobuf check is disabled.
var skippedProtobufFlags = []string{"print_version", "config_file"}

// buildConfigSchema compiles the embedded config.proto and returns the descriptor of `twine.config.Config`.
func buildConfigSchema() (protoreflect.MessageDescriptor, error) {
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(map[string]string{twinepb.ConfigPath: twinepb.ConfigProto}),
		}),
	}
	files, err := compiler.Compile(context.Background(), twinepb.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to compile config schema: %w", err)
	}
	file := files.FindFileByPath(twinepb.ConfigPath)
	if file == nil {
		return nil, fmt.Errorf("config schema %s is missing from the compiled files", twinepb.ConfigPath)
	}
	config := file.Messages().ByName("Config")
	if config == nil {
		return nil, fmt.Errorf("config schema %s does not define the Config message", twinepb.ConfigPath)
	}
	return config, nil
}

// configSchema returns the (cached) descriptor of the config message.
var configSchema = sync.OnceValues(buildConfigSchema)

// isLeaf returns true if the field maps to a flag rather than grouping other fields.
func isLeaf(fd protoreflect.FieldDescriptor) bool {
	return fd.Kind() != protoreflect.MessageKind || fd.Message().FullName() == durationFullName
}

// protobufValueToString converts a protobuf field value to its string representation suitable for flag setting.
func protobufValueToString(fd protoreflect.FieldDescriptor, v protoreflect.Value) (string, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return strconv.FormatBool(v.Bool()), nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return strconv.FormatInt(v.Int(), 10), nil
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return strconv.FormatUint(v.Uint(), 10), nil
	case protoreflect.FloatKind:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32), nil
	case protoreflect.DoubleKind:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64), nil
	case protoreflect.StringKind:
		return v.String(), nil
	case protoreflect.BytesKind:
		return base64.StdEncoding.EncodeToString(v.Bytes()), nil
	case protoreflect.EnumKind:
		// Use enum name for readability.
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name()), nil
		}
		return strconv.FormatInt(int64(v.Enum()), 10), nil
	case protoreflect.MessageKind:
		fullName := fd.Message().FullName()
		if fullName != durationFullName {
			return "", fmt.Errorf("unsupported message leaf: %s", fullName)
		}
		// The message may be dynamic, so read the fields by name instead of asserting *durationpb.Duration.
		msg := v.Message()
		fields := msg.Descriptor().Fields()
		seconds := msg.Get(fields.ByName("seconds")).Int()
		nanos := msg.Get(fields.ByName("nanos")).Int()
		return (time.Duration(seconds)*time.Second + time.Duration(nanos)).String(), nil
	default:
		return "", fmt.Errorf("unsupported kind: %v", fd.Kind())
	}
}

// collectAndRegisterFlags collects all the set flags with their values from the given protobuf message.
// The collected flags are put inside the given `flags` variable.
func collectAndRegisterFlags(flags map[ /*flagName*/ string] /*flagValue*/ string, m protoreflect.Message) error {
	var err error
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		// Lists/maps are not supported by design.
		if fd.IsList() || fd.IsMap() {
			err = fmt.Errorf("repeated/map not supported: %s", fd.FullName())
			return false
		}
		// Recurse into grouping messages.
		if !isLeaf(fd) {
			err = collectAndRegisterFlags(flags, v.Message())
			return err == nil
		}
		flagName := string(fd.Name())
		stringValue, convErr := protobufValueToString(fd, v)
		if convErr != nil {
			err = fmt.Errorf("failed to convert %s: %w", fd.FullName(), convErr)
			return false
		}
		// Check for duplicate flag entries.
		if _, alreadyExists := flags[flagName]; alreadyExists {
			err = fmt.Errorf("flag '%s' has multiple entries in txtpb config: '%s'", flagName, fd.FullName())
			return false
		}
		flags[flagName] = stringValue
		return true
	})
	return err
}

// setConfigFlags sets all the filled flags in the given `conf` to the global flag variables.
func setConfigFlags(conf protoreflect.Message) error {
	registeredFlags := make(map[ /*flagName*/ string] /*flagValue*/ string)
	if err := collectAndRegisterFlags(registeredFlags, conf); err != nil {
		return fmt.Errorf("failed to collect flags: %w", err)
	}
	for flagName, flagValue := range registeredFlags {
		if setErr := flag.Set(flagName, flagValue); setErr != nil {
			return fmt.Errorf("failed to set flag %s: %w", flagName, setErr)
		}
	}
	return nil
}

// getDefinedFlags returns the set of defined flags inside the given protobuf message schema.
func getDefinedFlags(md protoreflect.MessageDescriptor) (map[ /*flagName*/ string]struct{}, error) {
	flagSet := make(map[ /*flagName*/ string]struct{})
	var walkFields func(md protoreflect.MessageDescriptor) error
	walkFields = func(md protoreflect.MessageDescriptor) error {
		for fieldIdx := 0; fieldIdx < md.Fields().Len(); fieldIdx++ {
			fd := md.Fields().Get(fieldIdx)
			if fd.IsList() || fd.IsMap() {
				continue // Skip repeated/map fields.
			}
			if !isLeaf(fd) {
				if err := walkFields(fd.Message()); err != nil {
					return err
				}
				continue
			}
			flagName := string(fd.Name())
			if _, exists := flagSet[flagName]; exists {
				return fmt.Errorf("duplicate flag name '%s' in config: %s", flagName, fd.FullName())
			}
			flagSet[flagName] = struct{}{}
		}
		return nil
	}
	if err := walkFields(md); err != nil {
		return nil, err
	}
	return flagSet, nil
}

// CollectUnregisteredFlags collects all flags that haven't been registered in the protobuf config.
// An error exists in the results corresponding to each unregistered flag.
func CollectUnregisteredFlags() []error {
	schema, err := configSchema()
	if err != nil {
		return []error{err}
	}
	definedFlags, err := getDefinedFlags(schema)
	if err != nil {
		return []error{err}
	}
	errs := make([]error, 0)
	flag.VisitAll(func(f *flag.Flag) {
		if strings.HasPrefix(f.Name, "test.") { // Skip test flags.
			return
		}
		if slices.Contains(skippedProtobufFlags, f.Name) {
			return
		}
		if _, flagHasConfigEntry := definedFlags[f.Name]; !flagHasConfigEntry {
			errs = append(errs, fmt.Errorf("flag '%s' has not been defined in protobuf config", f.Name))
		}
	})
	return errs
}
