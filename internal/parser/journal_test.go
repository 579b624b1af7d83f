package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journal-monitor/backend/internal/logging"
	"github.com/journal-monitor/backend/internal/models"
)

func TestDecodeKnownEvent(t *testing.T) {
	dec := NewDecoder(nil)
	e := dec.Decode(`{"timestamp":"2024-03-01T10:20:30Z","event":"Docked","StationName":"Jameson Memorial","StarSystem":"Shinrarta Dezhra","MarketID":128666762,"DistFromStarLS":346.5,"Unexpected":{"x":1}}`)

	require.Equal(t, models.EventTypeDocked, e.Type)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC), e.EventTimeUTC)
	assert.Nil(t, e.Raw)

	d, ok := e.Payload.(*Docked)
	require.True(t, ok)
	assert.Equal(t, "Jameson Memorial", d.StationName)
	require.NotNil(t, d.MarketID)
	assert.Equal(t, int64(128666762), *d.MarketID)
	assert.Nil(t, d.SystemAddress)
	assert.Equal(t, 346.5, d.DistFromStarLS)
}

func TestDecodeCaseInsensitiveTag(t *testing.T) {
	e := NewDecoder(nil).Decode(`{"timestamp":"2024-03-01T10:20:30Z","event":"liftoff","PlayerControlled":false}`)
	require.Equal(t, models.EventTypeLiftoff, e.Type)
	l := e.Payload.(*Liftoff)
	assert.False(t, l.PlayerControlled)
	assert.False(t, l.HasLatLong())
}

func TestDecodeFallbacks(t *testing.T) {
	t.Run("unparseable text", func(t *testing.T) {
		tl := logging.NewTestLogger(t)
		dec := NewDecoder(nil, WithDecoderLogger(*tl.Logger))

		e := dec.Decode(`{"event":"Docked",`)
		assert.Equal(t, models.EventTypeUnknown, e.Type)
		assert.Equal(t, Unknown{}, e.Payload)
		assert.False(t, e.HasTime())
		tl.AssertContains(t, "Error parsing journal entry")
		tl.AssertContains(t, `{\"event\":\"Docked\",`)
	})

	t.Run("missing event field", func(t *testing.T) {
		e := NewDecoder(nil).Decode(`{"timestamp":"2024-03-01T10:20:30Z","StationName":"X"}`)
		assert.Equal(t, models.EventTypeUnknown, e.Type)
		assert.Equal(t, Unknown{}, e.Payload)
		assert.True(t, e.HasTime())
	})

	t.Run("unregistered tag keeps record", func(t *testing.T) {
		e := NewDecoder(nil).Decode(`{"timestamp":"2024-03-01T10:20:30Z","event":"CarrierJump","Body":"Sol"}`)
		assert.Equal(t, models.EventTypeUnknown, e.Type)
		u, ok := e.Payload.(Unknown)
		require.True(t, ok)
		assert.Equal(t, "CarrierJump", u.Name)
		assert.Equal(t, "Sol", u.Raw.Str("Body"))
	})

	t.Run("declared tag without constructor", func(t *testing.T) {
		e := NewDecoder(nil).Decode(`{"timestamp":"2024-03-01T10:20:30Z","event":"Music","MusicTrack":"NoTrack"}`)
		assert.Equal(t, models.EventTypeUnknown, e.Type)
		assert.Equal(t, "Music", e.Payload.(Unknown).Name)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		e := NewDecoder(nil).Decode(`{"timestamp":"soon","event":"Undocked","StationName":"X"}`)
		assert.Equal(t, models.EventTypeUndocked, e.Type)
		assert.False(t, e.HasTime())

		for _, ts := range []string{"2024-02-31T10:00:00Z", "2024-04-31T10:00:00Z", "2023-02-29T10:00:00Z"} {
			e := NewDecoder(nil).Decode(`{"timestamp":"` + ts + `","event":"Undocked","StationName":"X"}`)
			assert.False(t, e.HasTime(), ts)
		}
		e = NewDecoder(nil).Decode(`{"timestamp":"2024-02-29T10:00:00Z","event":"Undocked","StationName":"X"}`)
		assert.True(t, e.HasTime())
	})
}

func TestDecodeObjectKeepsRawUnmodified(t *testing.T) {
	obj := mustParse(t, `{"timestamp":"2024-03-01T10:20:30Z","event":"MaterialCollected","Category":"Raw","Name":"Iron","Count":3,"EDDMapColor":-65536}`)
	before := len(obj)

	e := NewDecoder(nil).DecodeObject(obj, true)
	assert.Equal(t, before, len(obj))
	assert.Equal(t, map[string]any(obj), e.Raw)

	m := e.Payload.(*MaterialCollected)
	assert.Equal(t, "iron", m.Name)
	assert.Equal(t, "Raw", m.Category)
	assert.Equal(t, 3, m.Count)
}

func TestSynthesize(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 20, 30, 250_000_000, time.FixedZone("X", 3600))
	dec := NewDecoder(nil)

	e := dec.Synthesize("Undocked", ts)
	assert.Equal(t, models.EventTypeUndocked, e.Type)
	assert.True(t, e.EventTimeUTC.Equal(ts))

	u := dec.Synthesize("Shutdown", ts)
	assert.Equal(t, models.EventTypeUnknown, u.Type)
	assert.True(t, u.HasTime())
}

func TestMaterialsLedger(t *testing.T) {
	dec := NewDecoder(nil)
	lines := []string{
		`{"timestamp":"2024-03-01T10:00:00Z","event":"Materials","Raw":[{"Name":"iron","Count":10},{"Name":"carbon","Count":4}],"Encoded":[{"Name":"shieldcyclerecordings","Name_Localised":"Distorted Shield Cycle Recordings","Count":2}]}`,
		`{"timestamp":"2024-03-01T10:01:00Z","event":"MaterialCollected","Category":"Raw","Name":"Iron","Count":2}`,
		`{"timestamp":"2024-03-01T10:02:00Z","event":"MaterialDiscarded","Category":"Raw","Name":"carbon","Count":1}`,
		`{"timestamp":"2024-03-01T10:03:00Z","event":"MaterialTrade","MarketID":1,"TraderType":"Raw","Paid":{"Material":"iron","Quantity":6},"Received":{"Material":"nickel","Category":"$MICRORESOURCE_CATEGORY_Elements;","Quantity":1}}`,
		`{"timestamp":"2024-03-01T10:04:00Z","event":"Synthesis","Name":"Limpet Basic","Materials":[{"Name":"iron","Count":1},{"Name":"nickel","Count":1}]}`,
		`{"timestamp":"2024-03-01T10:05:00Z","event":"MaterialDiscovered","Category":"Raw","Name":"Tin","DiscoveryNumber":3}`,
	}
	entries := make([]*models.Entry, len(lines))
	for i, l := range lines {
		entries[i] = dec.Decode(l)
	}

	ledger := NewMaterialLedger()
	ApplyMaterials(ledger, entries)

	assert.Equal(t, 5, ledger.Count("iron"))
	assert.Equal(t, 3, ledger.Count("carbon"))
	assert.Equal(t, 0, ledger.Count("nickel"))
	assert.Equal(t, 2, ledger.Count("ShieldCycleRecordings"))
	assert.Equal(t, 1, ledger.Count("drones"))
	assert.Equal(t, 12, entries[1].Payload.(*MaterialCollected).Total)

	snap := ledger.Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, "carbon", snap[0].Name)
}

func TestSynthesisObjectForm(t *testing.T) {
	e := NewDecoder(nil).Decode(`{"timestamp":"2024-03-01T10:04:00Z","event":"Synthesis","Name":"FSDBasic","Materials":{"Carbon":1,"Vanadium":1}}`)
	s := e.Payload.(*Synthesis)
	assert.Equal(t, "FSD Basic", s.Name)
	assert.Equal(t, map[string]int{"carbon": 1, "vanadium": 1}, s.Materials)
}

func TestFileheaderBeta(t *testing.T) {
	e := NewDecoder(nil).Decode(`{"timestamp":"2024-03-01T10:00:00Z","event":"Fileheader","part":1,"gameversion":"4.0.0.100 Beta","build":"r1234"}`)
	h := e.Payload.(*Fileheader)
	assert.True(t, h.Beta())
	assert.Equal(t, 1, h.Part)
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\r\n\r\n  \nb\n"))
}
