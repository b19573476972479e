package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "http://example.com/page", want: "http://example.com/page"},
		{name: "trailing slash", in: "http://example.com/page/", want: "http://example.com/page"},
		{name: "uppercase host", in: "http://EXAMPLE.com/Page", want: "http://example.com/Page"},
		{name: "default http port", in: "http://example.com:80/page", want: "http://example.com/page"},
		{name: "default https port", in: "https://example.com:443/page", want: "https://example.com/page"},
		{name: "explicit port kept", in: "http://example.com:8080/page", want: "http://example.com:8080/page"},
		{name: "fragment dropped", in: "http://example.com/page#section", want: "http://example.com/page"},
		{name: "query kept", in: "http://example.com/page?a=1", want: "http://example.com/page?a=1"},
		{name: "surrounding space", in: "  http://example.com/page  ", want: "http://example.com/page"},
		{name: "empty", in: "", wantErr: true},
		{name: "relative", in: "/page", wantErr: true},
		{name: "no host", in: "http://", wantErr: true},
		{name: "ftp", in: "ftp://example.com/file", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalURL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewDocument(t *testing.T) {
	doc, err := NewDocument("http://example.com/page/", "<html></html>")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/page", doc.URL)
	assert.Len(t, doc.ID, 64)

	// Same page spelled differently shares an identity.
	other, err := NewDocument("http://EXAMPLE.com:80/page", "<html></html>")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, other.ID)

	_, err = NewDocument("not a url", "")
	assert.ErrorIs(t, err, ErrInvalidURL)
}
