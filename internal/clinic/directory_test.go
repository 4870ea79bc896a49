package clinic

import (
	"testing"
	"time"
	_ "time/tzdata"

	"frontdesk/internal/clock"
	"frontdesk/internal/config"
	"frontdesk/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectory_LocalTime(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skip("tzdata not available")
	}
	instant := time.Date(2025, 1, 15, 20, 0, 0, 0, time.UTC) // 05:00 on the 16th in Tokyo
	d := NewDirectory(clock.Fixed(instant), true)
	require.NoError(t, d.Update([]config.ClinicConfig{
		{ID: "tokyo", Name: "Tokyo", Timezone: "Asia/Tokyo"},
		{ID: "utc", Timezone: "UTC"},
	}))

	now, err := d.Now("tokyo")
	require.NoError(t, err)
	assert.Equal(t, tokyo.String(), now.Location().String())

	today, err := d.Today("tokyo")
	require.NoError(t, err)
	assert.Equal(t, clock.NewDate(2025, 1, 16), today)

	today, err = d.Today("utc")
	require.NoError(t, err)
	assert.Equal(t, clock.NewDate(2025, 1, 15), today)

	assert.Equal(t, []string{"tokyo", "utc"}, []string{d.List()[0].ID, d.List()[1].ID})
}

func TestDirectory_UnknownClinic(t *testing.T) {
	strict := NewDirectory(nil, true)
	_, err := strict.Get("nowhere")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	lenient := NewDirectory(nil, false)
	c, err := lenient.Get("nowhere")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, c.Location)

	_, err = lenient.Get("")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDirectory_UpdateSkipsBadZones(t *testing.T) {
	d := NewDirectory(nil, true)
	err := d.Update([]config.ClinicConfig{{ID: "ok", Timezone: "UTC"}, {ID: "bad", Timezone: "Mars/Olympus"}})
	assert.Error(t, err)

	_, err = d.Get("ok")
	assert.NoError(t, err)
	_, err = d.Get("bad")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
