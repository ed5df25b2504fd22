package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("mongodb", "", "", "")
	require.Error(t, err)
}

func TestOpenRejectsEmptySupabaseCredentials(t *testing.T) {
	_, err := Open("supabase", "", "", "")
	require.Error(t, err)
}
