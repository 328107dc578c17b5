package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kafadas/kinjo/internal/model"
)

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer sk_dev", "sk_dev", false},
		{"bearer   sk_dev", "sk_dev", false},
		{"", "", true},
		{"Basic dXNlcg==", "", true},
		{"Bearer", "", true},
		{"Bearer a b", "", true},
	}
	for _, tc := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		got, err := ExtractAPIKey(r)
		if tc.wantErr {
			assert.Error(t, err, tc.header)
			continue
		}
		require.NoError(t, err, tc.header)
		assert.Equal(t, tc.want, got)
	}
}

func TestStatic(t *testing.T) {
	a := NewStatic(map[string]string{"k1": "user-1", "": "ghost", "k2": ""})

	uid, err := a.Authenticate(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)

	for _, k := range []string{"", "k2", "nope"} {
		_, err := a.Authenticate(context.Background(), k)
		assert.ErrorIs(t, err, model.ErrNotAuthenticated, k)
	}
}

func TestUserContext(t *testing.T) {
	_, err := UserFrom(context.Background())
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)

	uid, err := UserFrom(WithUser(context.Background(), "user-1"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)
}
