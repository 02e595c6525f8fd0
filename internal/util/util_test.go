package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSCacheValues(t *testing.T) {
	tests := []struct {
		name string
		text string
		keys []string
		want map[string]string
	}{
		{
			name: "user record",
			text: "name: tech\npassword: ********\nuid: 501\ngid: 20\ndir: /Users/tech\nshell: /bin/zsh\n",
			keys: []string{"uid", "gid", "name"},
			want: map[string]string{"name": "tech", "uid": "501", "gid": "20"},
		},
		{
			name: "mixed lines",
			text: "# busted line\n-ignored-line-\nfoo: bar baz\nqux: test\nneato key: and key value\nwith sep: : foo\n\n: bad\n",
			keys: []string{"qux", "neato key", "with sep"},
			want: map[string]string{"qux": "test", "neato key": "and key value", "with sep": ": foo"},
		},
		{
			name: "case insensitive keys",
			text: "UID: 502\n",
			keys: []string{"uid"},
			want: map[string]string{"uid": "502"},
		},
		{
			name: "empty",
			text: "\n\n",
			keys: []string{"qux"},
			want: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dsCacheValues([]byte(tt.text), tt.keys...))
		})
	}
}

func TestExecuteCommand_Empty(t *testing.T) {
	_, err := ExecuteCommand(context.Background(), nil, "", nil, nil)
	assert.Error(t, err)
}

func TestExecuteCommand_Output(t *testing.T) {
	out, err := ExecuteCommand(context.Background(), []string{"sh", "-c", "echo mounted; echo busy >&2"}, "", nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, "mounted\n", out.Stdout)
	assert.Equal(t, "busy\n", out.Stderr)
}

func TestCommandOutput_Combined(t *testing.T) {
	tests := []struct {
		out  CommandOutput
		want string
	}{
		{out: CommandOutput{Stdout: "mounted"}, want: "mounted"},
		{out: CommandOutput{Stdout: "a\n", Stderr: "mount_nfs: can't mount"}, want: "a\nmount_nfs: can't mount"},
		{out: CommandOutput{Stderr: "denied"}, want: "denied"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.out.Combined())
	}
}
