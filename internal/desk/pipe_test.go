package desk

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type pipeWriter struct {
	*io.PipeWriter
}

func ioPipe() (*io.PipeReader, pipeWriter) {
	r, w := io.Pipe()
	return r, pipeWriter{w}
}

// line blocks until the terminal has read it
func (w pipeWriter) line(t *testing.T, s string) {
	t.Helper()
	_, err := io.WriteString(w, s+"\n")
	require.NoError(t, err)
}
