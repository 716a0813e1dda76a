package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsGreeting(t *testing.T) {
	for _, in := range []string{"hola", "Hola!", "¡HOLA!", "Buenos días", "buenas tardes, necesito ayuda", "Menú", "hi", "Hello there", "inicio"} {
		require.True(t, isGreeting(in), in)
	}
	for _, in := range []string{"", "1", "hola@example.com", "holanda", "adios", "101"} {
		require.False(t, isGreeting(in), in)
	}
}
