package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssembleNormalizesWhitespaceAndTrailingSpace(t *testing.T) {
	t.Parallel()

	got := Assemble([]string{" hola", "mundo.", "\ndesde", "dictate"}, Options{TrailingSpace: true})
	require.Equal(t, "hola mundo. desde dictate ", got)
}

func TestAssembleWithoutTrailingSpace(t *testing.T) {
	t.Parallel()

	require.Equal(t, "hello world", Assemble([]string{"hello", "world"}, Options{}))
}

func TestAssembleEmptyInput(t *testing.T) {
	t.Parallel()

	require.Empty(t, Assemble(nil, Options{TrailingSpace: true, CapitalizeFirst: true}))
	require.Empty(t, Assemble([]string{"  ", "\n\t"}, Options{TrailingSpace: true}))
}

func TestAssembleCapitalizeFirstHandlesMultibyte(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Él dijo hola", Assemble([]string{"él dijo", "hola"}, Options{CapitalizeFirst: true}))
	require.Equal(t, "¿qué tal?", Assemble([]string{"¿qué tal?"}, Options{CapitalizeFirst: true}))
}

func TestAssembleIdempotentForNormalizedOutput(t *testing.T) {
	t.Parallel()

	opts := Options{CapitalizeFirst: true}
	first := Assemble([]string{"hello   world. this is dictate"}, opts)
	second := Assemble([]string{first}, opts)
	require.Equal(t, first, second)
}
