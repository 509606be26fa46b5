package utils

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetTestFlag overrides a registered flag until the test (and its cleanups) finish.
func SetTestFlag(t *testing.T, name, value string) {
	t.Helper()
	registered := flag.Lookup(name)
	require.NotNil(t, registered, "Flag %s is not registered", name)
	previous := registered.Value.String()
	require.NoError(t, flag.Set(name, value), "Flag %s rejected %q", name, value)
	t.Cleanup(func() { require.NoError(t, flag.Set(name, previous)) })
}

// SetTestFlags applies SetTestFlag to every name/value pair of `overrides`.
func SetTestFlags(t *testing.T, overrides map[string]string) {
	t.Helper()
	for name, value := range overrides {
		SetTestFlag(t, name, value)
	}
}
