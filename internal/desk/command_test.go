package desk

import (
	"testing"

	"github.com/lehigh-university-libraries/circdesk/internal/circulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Command
		wantErr error
	}{
		{name: "empty line dispatches", line: "   ", want: Command{Kind: KindDispatch}},
		{name: "ok", line: "/ok", want: Command{Kind: KindDispatch}},
		{name: "code", line: " abc123 \r", want: Command{Kind: KindCode, Code: "abc123"}},
		{name: "escaped slash code", line: "//weird", want: Command{Kind: KindCode, Code: "/weird"}},
		{name: "checkout", line: "/checkout", want: Command{Kind: KindMode, Mode: circulation.ModeCheckout}},
		{name: "return upper", line: "/RETURN", want: Command{Kind: KindMode, Mode: circulation.ModeReturn}},
		{name: "mode with arg", line: "/mode track", want: Command{Kind: KindMode, Mode: circulation.ModeTrack}},
		{name: "bad mode arg", line: "/mode renew", wantErr: circulation.ErrInvalidMode},
		{name: "member", line: "/member 7", want: Command{Kind: KindMember, MemberID: 7}},
		{name: "member clears", line: "/member", want: Command{Kind: KindClearMember}},
		{name: "member not a number", line: "/member paul", wantErr: circulation.ErrInvalidMember},
		{name: "member zero", line: "/member 0", wantErr: circulation.ErrInvalidMember},
		{name: "members", line: "/members", want: Command{Kind: KindMembers}},
		{name: "cancel", line: "/cancel", want: Command{Kind: KindCancel}},
		{name: "dismiss", line: "/dismiss", want: Command{Kind: KindDismiss}},
		{name: "status", line: "/status", want: Command{Kind: KindStatus}},
		{name: "help", line: "/help", want: Command{Kind: KindHelp}},
		{name: "quit", line: "/quit", want: Command{Kind: KindQuit}},
		{name: "unknown", line: "/renew", wantErr: ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
