package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Mode", "Sessions", "Focus"}
	rows := [][]string{
		{"RSVP", "12", "71.5"},
		{"Bionic Reading", "3", "8.0"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	require.Len(t, lines, 3)
	assert.Equal(t, "Mode           Sessions Focus", lines[0])
	assert.Equal(t, "RSVP                 12  71.5", lines[1])
	assert.Equal(t, "Bionic Reading        3   8.0", lines[2])
}

func TestFormatTableWideRunes(t *testing.T) {
	lines := formatTable([]string{"Doc", "N"}, [][]string{{"読書", "1"}, {"ab", "2"}}, map[int]bool{1: true})
	require.Len(t, lines, 3)
	assert.Equal(t, "読書 1", lines[1])
	assert.Equal(t, "ab   2", lines[2])
}
