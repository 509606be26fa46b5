// Package proto ships the protobuf schemas of twine as source, so they can be compiled at runtime.
package proto

import _ "embed"

// ConfigPath is the import path of the config schema.
const ConfigPath = "twine/config.proto"

// ConfigProto is the source of config.proto.
//
//go:embed config.proto
var ConfigProto string
