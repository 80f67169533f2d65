package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseArtifactStem(t *testing.T) {
	cases := []struct {
		name    string
		stem    string
		want    ParsedIdentity
		wantErr bool
	}{
		{
			name: "simple pure-ruby gem",
			stem: "nokogiri-1.15.0",
			want: ParsedIdentity{Name: "nokogiri", Version: "1.15.0", Platform: ""},
		},
		{
			name: "multi-segment platform",
			stem: "nokogiri-1.15.0-x86_64-linux-musl",
			want: ParsedIdentity{Name: "nokogiri", Version: "1.15.0", Platform: "x86_64-linux-musl"},
		},
		{
			name: "hyphenated gem name",
			stem: "activesupport-rails-7.0.4",
			want: ParsedIdentity{Name: "activesupport-rails", Version: "7.0.4", Platform: ""},
		},
		{
			name: "prerelease version token",
			stem: "rack-3.0.0.beta1",
			want: ParsedIdentity{Name: "rack", Version: "3.0.0.beta1", Platform: ""},
		},
		{name: "empty stem rejected", stem: "", wantErr: true},
		{name: "traversal rejected", stem: "..", wantErr: true},
		{name: "embedded traversal rejected", stem: "foo-1.0/../bar", wantErr: true},
		{name: "double slash rejected", stem: "foo//bar-1.0", wantErr: true},
		{name: "leading slash rejected", stem: "/foo-1.0", wantErr: true},
		{name: "no version token", stem: "justaname", wantErr: true},
		{name: "version token is first token", stem: "1.0-suffix", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseArtifactStem(tc.stem)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRejectUnsafeSegment(t *testing.T) {
	assert.NoError(t, RejectUnsafeSegment("foo/bar"))
	assert.Error(t, RejectUnsafeSegment(""))
	assert.Error(t, RejectUnsafeSegment("../etc/passwd"))
	assert.Error(t, RejectUnsafeSegment("a//b"))
	assert.Error(t, RejectUnsafeSegment("/etc"))
}
