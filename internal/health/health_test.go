package health

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjudin/chatvoice/internal/processor"
)

func TestHandleHealth(t *testing.T) {
	s := NewServer(":0", func() Status { return Status{} }, Controls{})

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestHandleStats(t *testing.T) {
	s := NewServer(":0", func() Status {
		return Status{
			Sources:           map[string]bool{"twitch": true, "youtube": false},
			Counters:          processor.Snapshot{Messages: 10, Spoken: 7, Spam: 2},
			AnnouncementQueue: 1,
			AudioQueue:        3,
			DroppedClips:      4,
			Paused:            true,
		}
	}, Controls{})

	rec := httptest.NewRecorder()
	s.handleStats(rec, httptest.NewRequest("GET", "/stats", nil))

	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, int64(10), st.Counters.Messages)
	assert.Equal(t, 3, st.AudioQueue)
	assert.True(t, st.Paused)
	assert.True(t, st.Sources["twitch"])
	assert.False(t, st.Sources["youtube"])
}

func TestHandlePause(t *testing.T) {
	var got []bool
	s := NewServer(":0", func() Status { return Status{} }, Controls{
		SetPaused: func(on bool) { got = append(got, on) },
	})

	rec := httptest.NewRecorder()
	s.handlePause(rec, httptest.NewRequest("POST", "/pause?on=true", nil))
	assert.Equal(t, 204, rec.Code)

	rec = httptest.NewRecorder()
	s.handlePause(rec, httptest.NewRequest("POST", "/pause?on=false", nil))
	assert.Equal(t, 204, rec.Code)

	rec = httptest.NewRecorder()
	s.handlePause(rec, httptest.NewRequest("GET", "/pause?on=true", nil))
	assert.Equal(t, 405, rec.Code)

	assert.Equal(t, []bool{true, false}, got)
}

func TestHandleSettings(t *testing.T) {
	var capacity int
	var voice string
	var accent bool
	var volume, rate float64
	s := NewServer(":0", func() Status { return Status{} }, Controls{
		SetQueueCapacity: func(n int) error {
			if n < 1 || n > 200 {
				return fmt.Errorf("capacity out of range")
			}
			capacity = n
			return nil
		},
		SetVoice:  func(v string, a bool) { voice, accent = v, a },
		SetVolume: func(v float64) error { volume = v; return nil },
		SetRate:   func(v float64) error { rate = v; return nil },
	})

	body := `{"queue_capacity":20,"voice":"nova","accent":true,"volume":0.5,"rate":1.2}`
	rec := httptest.NewRecorder()
	s.handleSettings(rec, httptest.NewRequest("POST", "/settings", strings.NewReader(body)))
	require.Equal(t, 204, rec.Code)

	assert.Equal(t, 20, capacity)
	assert.Equal(t, "nova", voice)
	assert.True(t, accent)
	assert.Equal(t, 0.5, volume)
	assert.Equal(t, 1.2, rate)

	// Out-of-range capacity is rejected without touching anything else.
	rec = httptest.NewRecorder()
	s.handleSettings(rec, httptest.NewRequest("POST", "/settings", strings.NewReader(`{"queue_capacity":999}`)))
	assert.Equal(t, 422, rec.Code)
	assert.Equal(t, 20, capacity)

	rec = httptest.NewRecorder()
	s.handleSettings(rec, httptest.NewRequest("POST", "/settings", strings.NewReader("not json")))
	assert.Equal(t, 400, rec.Code)
}
