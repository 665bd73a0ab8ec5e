package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestClient_AddLike(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "/users/liked_songs/add/u1", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Client-Session"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "aabbccddeeff001122334455", body["song_id"])

		_, _ = w.Write([]byte(`{"message":"ok","user":{"id":"u1","liked_Songs":["aabbccddeeff001122334455"]}}`))
	})

	resp, err := c.AddLike(context.Background(), "u1", "aabbccddeeff001122334455")
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	assert.Equal(t, []string{"aabbccddeeff001122334455"}, resp.User.LikedSongs)
}

func TestClient_RemoveLike(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/liked_songs/remove/u1", r.URL.Path)
		_, _ = w.Write([]byte(`{"message":"ok","user":{"id":"u1","liked_Songs":[]}}`))
	})

	resp, err := c.RemoveLike(context.Background(), "u1", "aabbccddeeff001122334455")
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	assert.Empty(t, resp.User.LikedSongs)
}

func TestClient_UpdateMood(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/update_mood/u1", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "happy", body["mood"])

		_, _ = w.Write([]byte(`{"message":"Mood 'happy' updated successfully","user":{"id":"u1","mood_search_count":3}}`))
	})

	resp, err := c.UpdateMood(context.Background(), "u1", "happy")
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	assert.Equal(t, 3, resp.User.MoodSearchCount)
}

func TestClient_GetUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/u1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"u1","username":"listener","liked_Songs":["a"]}`))
	})

	u, err := c.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "listener", u.Username)
	assert.Equal(t, []string{"a"}, u.LikedSongs)
}

func TestClient_ErrorMessagePreference(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "structured message field",
			body: `{"message":"song not found"}`,
			want: "song not found",
		},
		{
			name: "detail field fallback",
			body: `{"detail":"Invalid mood"}`,
			want: "Invalid mood",
		},
		{
			name: "unstructured body falls back to status",
			body: `<html>boom</html>`,
			want: "status 400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.AddLike(context.Background(), "u1", "x")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
