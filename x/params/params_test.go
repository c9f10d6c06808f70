package params

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntAcceptsEveryNumericEncoding(t *testing.T) {
	m := map[string]any{
		"yaml_int":   42,
		"json_float": float64(42),
		"int64":      int64(42),
		"uint64":     uint64(42),
		"float32":    float32(42),
		"string":     "42",
	}
	for _, key := range []string{"yaml_int", "json_float", "int64", "uint64", "float32"} {
		require.Equal(t, 42, Int(m, key, 0), key)
	}
	require.Equal(t, 7, Int(m, "string", 7), "mistyped values fall back to the default")
	require.Equal(t, 7, Int(m, "absent", 7))
}

func TestUint16Range(t *testing.T) {
	m := map[string]any{"addr": 0x29, "big": 0x10000, "neg": -1}
	require.Equal(t, uint16(0x29), Uint16(m, "addr", 0x40))
	require.Equal(t, uint16(0x40), Uint16(m, "big", 0x40))
	require.Equal(t, uint16(0x40), Uint16(m, "neg", 0x40))
	require.Equal(t, uint16(0x40), Uint16(m, "absent", 0x40))
}

func TestFloatAcceptsIntegerEncodings(t *testing.T) {
	m := map[string]any{"a": 1.5, "b": 2, "c": int64(3)}
	require.Equal(t, 1.5, Float(m, "a", 0))
	require.Equal(t, 2.0, Float(m, "b", 0))
	require.Equal(t, 3.0, Float(m, "c", 0))
	require.Equal(t, 9.0, Float(m, "absent", 9))
}

func TestStringAndBool(t *testing.T) {
	m := map[string]any{"device": "robohat", "enabled": true, "n": 1}
	require.Equal(t, "robohat", String(m, "device", "x"))
	require.Equal(t, "x", String(m, "n", "x"))
	require.True(t, Bool(m, "enabled", false))
	require.False(t, Bool(m, "n", false))
}

func TestRequire(t *testing.T) {
	m := map[string]any{"device": "robohat", "empty": ""}
	v, err := Require(m, "device")
	require.NoError(t, err)
	require.Equal(t, "robohat", v)

	_, err = Require(m, "empty")
	require.Error(t, err)
	_, err = Require(m, "absent")
	require.ErrorContains(t, err, "absent")
}
