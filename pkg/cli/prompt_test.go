package cli

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "y\n", true},
		{"yes word", "YES\n", true},
		{"no", "n\n", false},
		{"anything else is no", "maybe\n", false},
		{"empty is no", "\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPrompter(strings.NewReader(tt.input), &bytes.Buffer{})
			got, err := p.Confirm("Plan file updated?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfirmEOF(t *testing.T) {
	p := NewPrompter(strings.NewReader(""), &bytes.Buffer{})
	_, err := p.Confirm("Plan file updated?")
	assert.ErrorIs(t, err, io.EOF)
}

func TestFractionReasksOnBadInput(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("abc\n150\n-3\n20\n"), &out)

	got, err := p.Fraction("Max invested %:")
	require.NoError(t, err)
	assert.InDelta(t, 0.20, got, 1e-9)
	assert.Equal(t, 3, strings.Count(out.String(), "between 0 and 100"))
}

func TestIndexBounds(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("4\n-1\nx\n2\n"), &out)

	got, err := p.Index("Open token index:", 4)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}
