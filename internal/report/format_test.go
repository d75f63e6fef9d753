package report

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{5, "5"},
		{2.5, "2.5"},
		{1234.567, "1,234.57"},
		{1_000_000, "1,000,000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.in), "%v", tt.in)
	}
}

func TestFormatLarge(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{999, "999"},
		{1_000, "1.0K"},
		{12_345, "12.3K"},
		{1_000_000, "1.00M"},
		{19_001_000, "19.00M"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatLarge(tt.in), "%v", tt.in)
	}
}

func TestFormatPeriod(t *testing.T) {
	assert.Equal(t, "45m", FormatPeriod(45))
	assert.Equal(t, "1h", FormatPeriod(60))
	assert.Equal(t, "3h", FormatPeriod(180))
	assert.Equal(t, "1h 30m", FormatPeriod(90))
	assert.Equal(t, "24h", FormatPeriod(1440))
}

func TestTimeAgo(t *testing.T) {
	base := time.Unix(1_000_000, 0)
	tests := []struct {
		ago  int64
		want string
	}{
		{0, "0s ago"},
		{59, "59s ago"},
		{60, "1m ago"},
		{3599, "59m ago"},
		{3600, "1h ago"},
		{86399, "23h ago"},
		{86400, "1d ago"},
		{-30, "0s ago"},
	}
	for _, tt := range tests {
		ts := base.Unix() - tt.ago
		assert.Equal(t, tt.want, TimeAgo(strconv.FormatInt(ts, 10), base), "%d", tt.ago)
	}
	assert.Empty(t, TimeAgo("soon", base))
}

func TestHelperTables(t *testing.T) {
	assert.Equal(t, "Marketplace", BuildingName(5, true))
	assert.Equal(t, "Bee Farm", BuildingName(5, false))
	assert.Equal(t, "Building 2", BuildingName(2, false))

	assert.Equal(t, "Hard", QuestDifficulty(2))
	assert.Equal(t, "Level 7", QuestDifficulty(7))
}

func TestQuestReward(t *testing.T) {
	tests := []struct {
		rewardType int
		amount     string
		want       string
	}{
		{0, "2000000000000000000", "2.00 SEED"},
		{1, "500000000000000000", "0.50 LEAF"},
		{2, "5400", "1.5H TOD"},
		{3, "3000000000000", "3 PTS"},
		{4, "7000000000000000000", "7 experience"},
		{9, "12", "12 rewards"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuestReward(tt.rewardType, tt.amount))
	}
}
