package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10", "10"},
		{"  7.25 ", "7.25"},
		{"1,234.50", "1234.5"},
		{"1.234,50", "1234.5"},
		{"12,5", "12.5"},
		{"1,000", "1000"},
		{"1,234,567", "1234567"},
		{"1 000", "1000"},
		{"15 EUR", "15"},
		{"12.", "12"},
		{".5", "0.5"},
		{"+3", "3"},
		{"-5", "0"},
		{"abc", "0"},
		{"$5", "0"},
		{"", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assertDecimal(t, tt.want, ParseAmount(tt.in))
		})
	}
}

func TestParseFlag(t *testing.T) {
	for _, in := range []string{"yes", "TRUE", "1", "on", " On "} {
		assert.True(t, ParseFlag(in), in)
	}
	for _, in := range []string{"", "no", "0", "off", "enabled"} {
		assert.False(t, ParseFlag(in), in)
	}
}

func TestParseSchedule(t *testing.T) {
	site := time.FixedZone("site", 2*60*60)

	t.Run("local layout uses the site zone first", func(t *testing.T) {
		got := ParseSchedule("2024-03-01 12:00", site, time.UTC)
		require.NotNil(t, got)
		assert.True(t, got.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, site)))
	})

	t.Run("explicit offset wins over zones", func(t *testing.T) {
		got := ParseSchedule("2024-03-01T12:00:00Z", site)
		require.NotNil(t, got)
		assert.True(t, got.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
	})

	t.Run("us date", func(t *testing.T) {
		got := ParseSchedule("03/01/2024", time.UTC)
		require.NotNil(t, got)
		assert.True(t, got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("unix seconds", func(t *testing.T) {
		got := ParseSchedule("1700000000")
		require.NotNil(t, got)
		assert.Equal(t, int64(1700000000), got.Unix())
	})

	t.Run("unparseable means no schedule", func(t *testing.T) {
		assert.Nil(t, ParseSchedule("next tuesday", site))
		assert.Nil(t, ParseSchedule("   "))
	})
}

func TestParseIncrementRules(t *testing.T) {
	raw := `[
		{"from": "100", "increment": "5"},
		{"from": 0, "to": "100", "increment": 2},
		{"from": "5", "increment": "0"},
		{"from": "50", "to": "10", "increment": "1"},
		{"from": "1"},
		{"from": "1,5", "to": null, "increment": "0,25"}
	]`
	rules := ParseIncrementRules(raw)
	require.Len(t, rules, 3)

	assertDecimal(t, "0", rules[0].From)
	require.NotNil(t, rules[0].To)
	assertDecimal(t, "100", *rules[0].To)
	assertDecimal(t, "2", rules[0].Increment)

	assertDecimal(t, "1.5", rules[1].From)
	assert.Nil(t, rules[1].To)
	assertDecimal(t, "0.25", rules[1].Increment)

	assertDecimal(t, "100", rules[2].From)
	assert.Nil(t, rules[2].To)

	assert.Empty(t, ParseIncrementRules("not json"))
	assert.Empty(t, ParseIncrementRules(""))
}

func TestResolveConfig(t *testing.T) {
	site := time.FixedZone("site", -5*60*60)
	cfg := ResolveConfig(RawSettings{
		ProductID:               " 42 ",
		Enabled:                 "yes",
		StartPrice:              "10,00",
		BidIncrement:            "",
		ReservePrice:            "oops",
		Sealed:                  "1",
		AutomaticBidding:        "on",
		IncrementMode:           "Advanced",
		AutomaticIncrementValue: "-3",
		IncrementRules:          `[{"from":"0","increment":"1.5"}]`,
		StartAt:                 "2024-01-01 09:00",
		EndAt:                   "whenever",
	}, ResolveOptions{SiteLocation: site})

	assert.Equal(t, "42", cfg.ProductID)
	assert.True(t, cfg.Enabled)
	assertDecimal(t, "10", cfg.StartPrice)
	assertDecimal(t, "0", cfg.ManualIncrement)
	assertDecimal(t, "1", ManualIncrement(cfg))
	assert.False(t, cfg.HasReserve())
	assert.True(t, cfg.Sealed)
	assert.True(t, cfg.AutomaticBiddingEnabled)
	assert.Equal(t, IncrementAdvanced, cfg.IncrementMode)
	assertDecimal(t, "0", cfg.AutomaticIncrementValue)
	require.Len(t, cfg.IncrementRules, 1)
	require.NotNil(t, cfg.StartAt)
	assert.True(t, cfg.StartAt.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, site)))
	assert.Nil(t, cfg.EndAt)
	assert.Equal(t, LifecycleActive, cfg.Lifecycle(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
}

func TestResolveConfigDefaultsNeverFail(t *testing.T) {
	cfg := ResolveConfig(RawSettings{}, ResolveOptions{})
	assert.False(t, cfg.Enabled)
	assert.Equal(t, IncrementSimple, cfg.IncrementMode)
	assert.Empty(t, cfg.IncrementRules)
	assert.Nil(t, cfg.StartAt)
	assert.Nil(t, cfg.EndAt)
	assertDecimal(t, "1", MinimumRequired(cfg, RuntimeState{}))
}
