package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2018-01-02")
	require.NoError(t, err)
	require.Equal(t, NewDate(2018, 1, 2), d)

	_, err = ParseDate("01/02/2018")
	require.Error(t, err)
}
