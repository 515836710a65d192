package weather

import (
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMessage satisfies just enough of the paho Message interface for
// handleMessage.
type fakeMessage struct {
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return "weather/observations" }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func newTestMQTTSource() *MQTTSource {
	return &MQTTSource{rows: make(map[int64]Row), log: logrus.NewEntry(logrus.StandardLogger())}
}

func TestMQTTSource_HandleMessage(t *testing.T) {
	src := newTestMQTTSource()

	src.handleMessage(nil, fakeMessage{payload: []byte(
		`{"timestamp":"2023-06-15T10:00:00Z","ghi":450,"temp_air":18.5}`)})

	row, ok := src.Latest()
	require.True(t, ok)
	assert.Equal(t, 450.0, row.GHI)
	assert.Equal(t, 18.5, row.TempAir)
	assert.True(t, row.Timestamp.Equal(time.Date(2023, 6, 15, 10, 0, 0, 0, time.UTC)))
}

func TestMQTTSource_LatestTracksNewestTimestamp(t *testing.T) {
	src := newTestMQTTSource()

	src.handleMessage(nil, fakeMessage{payload: []byte(
		`{"timestamp":"2023-06-15T11:00:00Z","ghi":500,"temp_air":19}`)})
	// An out-of-order (older) observation is stored but not "latest".
	src.handleMessage(nil, fakeMessage{payload: []byte(
		`{"timestamp":"2023-06-15T10:00:00Z","ghi":450,"temp_air":18.5}`)})

	row, ok := src.Latest()
	require.True(t, ok)
	assert.Equal(t, 500.0, row.GHI)
}

func TestMQTTSource_RepublishWins(t *testing.T) {
	src := newTestMQTTSource()

	src.handleMessage(nil, fakeMessage{payload: []byte(
		`{"timestamp":"2023-06-15T10:00:00Z","ghi":450,"temp_air":18.5}`)})
	src.handleMessage(nil, fakeMessage{payload: []byte(
		`{"timestamp":"2023-06-15T10:00:00Z","ghi":460,"temp_air":18.7}`)})

	table, err := src.Snapshot()
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, 460.0, table.Row(0).GHI)
}

func TestMQTTSource_DropsMalformedPayloads(t *testing.T) {
	src := newTestMQTTSource()

	src.handleMessage(nil, fakeMessage{payload: []byte(`{broken`)})
	src.handleMessage(nil, fakeMessage{payload: []byte(`{"ghi":450}`)}) // no timestamp

	_, ok := src.Latest()
	assert.False(t, ok)
}

func TestMQTTSource_Snapshot(t *testing.T) {
	src := newTestMQTTSource()

	// Too little data for a structurally valid table yet.
	_, err := src.Snapshot()
	assert.Error(t, err)

	for h := 0; h < 3; h++ {
		src.handleMessage(nil, fakeMessage{payload: []byte(fmt.Sprintf(
			`{"timestamp":"2023-06-15T%02d:00:00Z","ghi":%d,"temp_air":15}`, 10+h, 400+h*50))})
	}

	table, err := src.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, 400.0, table.Row(0).GHI)
	assert.Equal(t, 500.0, table.Row(2).GHI)
}
