package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var townBuildings = map[int]string{
	1: "Stake House",
	3: "Ware House",
	5: "Marketplace",
	7: "Farmer House",
}

var villageBuildings = map[int]string{
	0: "Solar Panels",
	3: "Soil Factory",
	5: "Bee Farm",
}

var questDifficulties = map[int]string{
	0: "Easy",
	1: "Medium",
	2: "Hard",
}

const (
	rewardSeed = iota
	rewardLeaf
	rewardTimeExtension
	rewardPoints
	rewardExperience
)

var rewardNames = map[int]string{
	rewardSeed:          "SEED",
	rewardLeaf:          "LEAF",
	rewardTimeExtension: "time extension",
	rewardPoints:        "PTS",
	rewardExperience:    "experience",
}

// BuildingName resolves a building id within the town or the village.
func BuildingName(id int, town bool) string {
	names := villageBuildings
	if town {
		names = townBuildings
	}
	if name, ok := names[id]; ok {
		return name
	}
	return fmt.Sprintf("Building %d", id)
}

func QuestDifficulty(level int) string {
	if name, ok := questDifficulties[level]; ok {
		return name
	}
	return fmt.Sprintf("Level %d", level)
}

// QuestReward renders a quest payout. SEED, LEAF and experience amounts
// are 18-decimal fixed point; time extensions are seconds.
func QuestReward(rewardType int, amount string) string {
	v, _ := strconv.ParseFloat(amount, 64)
	switch rewardType {
	case rewardSeed, rewardLeaf:
		return fmt.Sprintf("%.2f %s", v/1e18, rewardNames[rewardType])
	case rewardPoints:
		return FormatScore(v) + " PTS"
	case rewardExperience:
		return fmt.Sprintf("%.0f experience", v/1e18)
	case rewardTimeExtension:
		return fmt.Sprintf("%.1fH TOD", v/3600)
	}
	return amount + " rewards"
}

// FormatScore scales raw on-chain points (12 decimals) for display.
func FormatScore(raw float64) string {
	return FormatNumber(raw / 1e12)
}

// FormatNumber groups thousands and keeps at most two decimals.
func FormatNumber(v float64) string {
	s := humanize.FormatFloat("#,###.##", v)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// FormatLarge abbreviates millions and thousands.
func FormatLarge(v float64) string {
	switch {
	case v >= 1_000_000:
		return strconv.FormatFloat(v/1_000_000, 'f', 2, 64) + "M"
	case v >= 1_000:
		return strconv.FormatFloat(v/1_000, 'f', 1, 64) + "K"
	}
	return FormatNumber(v)
}

// FormatPeriod renders minutes as "45m", "3h" or "1h 30m".
func FormatPeriod(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	s := fmt.Sprintf("%dh", minutes/60)
	if rem := minutes % 60; rem != 0 {
		s += fmt.Sprintf(" %dm", rem)
	}
	return s
}

// TimeAgo renders a unix-seconds timestamp relative to now.
func TimeAgo(unix string, now time.Time) string {
	sec, err := strconv.ParseInt(unix, 10, 64)
	if err != nil {
		return ""
	}
	diff := max(now.Unix()-sec, 0)
	switch {
	case diff < 60:
		return fmt.Sprintf("%ds ago", diff)
	case diff < 3600:
		return fmt.Sprintf("%dm ago", diff/60)
	case diff < 86400:
		return fmt.Sprintf("%dh ago", diff/3600)
	}
	return fmt.Sprintf("%dd ago", diff/86400)
}
