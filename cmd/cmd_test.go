package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/circdesk/internal/apitest"
	"github.com/lehigh-university-libraries/circdesk/internal/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CIRCDESK_CONFIG", "")
	t.Setenv("CIRCDESK_API_URL", "")
	t.Setenv("CIRCDESK_DEVICE", "")
	t.Setenv("CIRCDESK_JOURNAL", "")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestBooksAndMembers(t *testing.T) {
	srv := apitest.New(t)
	srv.QRData = func() string { return "abc123" }
	qrPath := filepath.Join(t.TempDir(), "label.png")

	out, err := execute(t, "", "--api-url", srv.URL, "books", "register", "--title", "Dune", "--author", "Herbert", "--qr-out", qrPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Registered book 1: abc123")
	img, err := os.ReadFile(qrPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG")))

	out, err = execute(t, "", "--api-url", srv.URL, "members", "register", "--name", "Paul")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered member 1: Paul")

	out, err = execute(t, "", "--api-url", srv.URL, "members", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Paul")

	out, err = execute(t, "", "--api-url", srv.URL, "books", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "AVAILABLE")
	assert.Contains(t, out, "Dune by Herbert")

	_, err = execute(t, "", "--api-url", srv.URL, "books", "register", "--title", "Dune")
	assert.Error(t, err, "author is required")
}

func TestTrackCommand(t *testing.T) {
	srv := apitest.New(t)
	srv.AddBook("Dune", "Herbert", "abc123")

	out, err := execute(t, "", "--api-url", srv.URL, "track", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "Dune by Herbert\nStatus: available\n", out)

	out, err = execute(t, "", "--api-url", srv.URL, "track", "zzz")
	require.NoError(t, err)
	assert.Equal(t, "Book not found (zzz)\n", out)

	srv.FailNext("/track")
	_, err = execute(t, "", "--api-url", srv.URL, "track", "abc123")
	assert.ErrorContains(t, err, "lookup failed")
}

func TestDeskCommand(t *testing.T) {
	srv := apitest.New(t)
	srv.AddBook("Dune", "Herbert", "abc123")
	srv.AddMember(7, "Paul")
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	out, err := execute(t, "abc123\n\n/quit\n",
		"--api-url", srv.URL, "desk", "--member", "7", "--journal", dbPath, "--station", "front")
	require.NoError(t, err)
	assert.Contains(t, out, "[checkout | member 7 Paul] captured abc123")

	// The request may still be in flight when /quit is read; the desk waits for it.
	assert.Equal(t, 1, srv.Calls("/checkout"))

	store, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "front", entries[0].Station)
	assert.Equal(t, int64(7), entries[0].MemberID)
}

func TestJournalCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	store, err := journal.Open(dbPath)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, journal.Entry{Mode: "checkout", Code: "abc123", MemberID: 7, Outcome: journal.OutcomeSuccess}))
	require.NoError(t, store.Record(ctx, journal.Entry{Mode: "return", Code: "nope", Outcome: journal.OutcomeError, Detail: "Book not found", Discarded: true}))
	require.NoError(t, store.Close())

	out, err := execute(t, "", "journal", "list", "--journal", dbPath, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "nope")
	assert.Contains(t, out, "(discarded)")
	assert.NotContains(t, out, "abc123")

	parquetPath := filepath.Join(t.TempDir(), "journal.parquet")
	_, err = execute(t, "", "journal", "export", "--journal", dbPath, "--out", parquetPath)
	require.NoError(t, err)

	entries, err := journal.ReadParquet(parquetPath)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	out, err = execute(t, "", "journal", "stats", "--journal", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Requests: 2")
	assert.Contains(t, out, "checkout")

	out, err = execute(t, "", "journal", "stats", "--journal", dbPath, "--yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "total: 2")
}

func TestDecodeDataURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "data url", in: "data:image/png;base64,aGk=", want: "hi"},
		{name: "bare base64", in: "aGk=", want: "hi"},
		{name: "no comma", in: "data:image/png;base64", wantErr: true},
		{name: "bad base64", in: "data:image/png;base64,***", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeDataURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}
