package custodian

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/clausewitz/internal/config"
	"github.com/standardbeagle/clausewitz/internal/extractor"
)

func testConfig(maxPerCampaign int) *config.Config {
	return &config.Config{
		History: config.History{MaxSnapshotsPerCampaign: maxPerCampaign},
		Ingest:  config.Ingest{QueueSize: 16},
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition was not met before timeout")
}

func TestCustodian_Latest__reflectsMostRecentIngest(t *testing.T) {
	c := New(testConfig(10))
	defer c.Close()

	c.Ingest(extractor.Snapshot{CampaignName: "Eat My Shorts"}, "a.sav")
	waitUntil(t, time.Second, func() bool {
		_, ok := c.Latest("Eat My Shorts")
		return ok
	})

	snap, ok := c.Latest("Eat My Shorts")
	require.True(t, ok)
	assert.Equal(t, "Eat My Shorts", snap.CampaignName)

	_, ok = c.Latest("unknown-campaign")
	assert.False(t, ok)
}

func TestCustodian_History__retainsInsertOrderAndTrimsToMax(t *testing.T) {
	c := New(testConfig(2))
	defer c.Close()

	for i := 0; i < 3; i++ {
		c.Ingest(extractor.Snapshot{RequiredContentPacks: []string{string(rune('a' + i))}}, "")
	}
	waitUntil(t, time.Second, func() bool { return len(c.History("")) == 2 })

	hist := c.History("")
	require.Len(t, hist, 2)
	assert.Equal(t, "b", hist[0].RequiredContentPacks[0])
	assert.Equal(t, "c", hist[1].RequiredContentPacks[0])
}

func TestCustodian_Campaigns__summarizesEachCampaignOnce(t *testing.T) {
	c := New(testConfig(10))
	defer c.Close()

	c.Ingest(extractor.Snapshot{
		CampaignName: "Eat My Shorts",
		Empires:      []extractor.EmpireData{{Name: "United Nations of Earth"}, {Name: "Krax"}},
	}, "")
	waitUntil(t, time.Second, func() bool { return len(c.Campaigns()) == 1 })

	summaries := c.Campaigns()
	require.Len(t, summaries, 1)
	assert.Equal(t, "Eat My Shorts", summaries[0].Name)
	assert.ElementsMatch(t, []string{"United Nations of Earth", "Krax"}, summaries[0].EmpireNames)
	assert.Equal(t, 1, summaries[0].SnapshotCount)
	assert.False(t, summaries[0].LastIngested.IsZero())
}

func TestCustodian_Campaigns__sourcePathIsRelativeToWatchRoot(t *testing.T) {
	cfg := testConfig(10)
	cfg.Watch.Root = "/saves"
	c := New(cfg)
	defer c.Close()

	c.Ingest(extractor.Snapshot{CampaignName: "Eat My Shorts"}, "/saves/campaigns/eat-my-shorts/autosave.sav")
	waitUntil(t, time.Second, func() bool { return len(c.Campaigns()) == 1 })

	assert.Equal(t, "campaigns/eat-my-shorts/autosave.sav", c.Campaigns()[0].SourcePath)
}

func TestCustodian_Subscribe__receivesEveryIngestedSnapshot(t *testing.T) {
	c := New(testConfig(10))
	defer c.Close()

	sub := c.Subscribe()
	c.Ingest(extractor.Snapshot{CampaignName: "Eat My Shorts"}, "")

	select {
	case snap, ok := <-sub:
		require.True(t, ok)
		assert.Equal(t, "Eat My Shorts", snap.CampaignName)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the ingested snapshot")
	}
}

func TestCustodian_Save__satisfiesSnapshotterAndAppendsHistory(t *testing.T) {
	c := New(testConfig(10))
	defer c.Close()

	var s Snapshotter = c
	require.NoError(t, s.Save("Eat My Shorts", extractor.Snapshot{CampaignName: "Eat My Shorts"}))

	waitUntil(t, time.Second, func() bool { return len(c.History("Eat My Shorts")) == 1 })
}

func TestCustodian_Close__closesOpenSubscriptions(t *testing.T) {
	c := New(testConfig(10))
	sub := c.Subscribe()
	c.Close()

	select {
	case _, ok := <-sub:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscriber channel was not closed after Close")
	}
}
