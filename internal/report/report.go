// Package report renders activity and burn reports as Telegram HTML.
package report

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/stellarlinkco/pixbot/internal/activity"
	"github.com/stellarlinkco/pixbot/internal/burn"
	"github.com/stellarlinkco/pixbot/internal/bus"
	"github.com/stellarlinkco/pixbot/internal/pagination"
)

const NoopCallback = "noop"

// PageCallbackPrefix prefixes the callback data of navigation buttons.
const PageCallbackPrefix = "page_"

var emojis = map[activity.Kind]string{
	activity.KindAttack:                   "⚔️",
	activity.KindKilled:                   "💀",
	activity.KindMint:                     "🌱",
	activity.KindPlayed:                   "🎮",
	activity.KindItemConsumed:             "🪴",
	activity.KindShopItemPurchased:        "🛒",
	activity.KindLandTransfer:             "🏠",
	activity.KindLandMinted:               "🆕",
	activity.KindLandNameChanged:          "✏️",
	activity.KindVillageUpgradedWithLeaf:  "⚒️",
	activity.KindVillageSpeedUpWithSeed:   "⚡",
	activity.KindTownUpgradedWithLeaf:     "⚒️",
	activity.KindTownSpeedUpWithSeed:      "⚡",
	activity.KindQuestStarted:             "⏳",
	activity.KindQuestFinalized:           "✅",
	activity.KindVillageProductionClaimed: "✅",
}

// ItemNames resolves shop and garden item ids.
type ItemNames interface {
	ShopName(id string) (string, bool)
	GardenName(id string) (string, bool)
}

type Renderer struct {
	items ItemNames
	now   func() time.Time
}

// New returns a Renderer. items may be nil, in which case every item is
// shown by id.
func New(items ItemNames) *Renderer {
	return &Renderer{items: items, now: time.Now}
}

func (r *Renderer) SetClock(now func() time.Time) { r.now = now }

func (r *Renderer) shopName(id string) string {
	if r.items != nil {
		if name, ok := r.items.ShopName(id); ok {
			return name
		}
	}
	return "Item #" + id
}

func (r *Renderer) gardenName(id string) string {
	if r.items != nil {
		if name, ok := r.items.GardenName(id); ok {
			return name
		}
	}
	return "Item #" + id
}

// Event renders one event line: emoji, description and relative time.
func (r *Renderer) Event(ev activity.Event) string {
	emoji, ok := emojis[ev.Kind()]
	if !ok {
		emoji = "❓"
	}
	return fmt.Sprintf("%s %s %s", emoji, html.EscapeString(r.describe(ev)), TimeAgo(ev.Timestamp(), r.now()))
}

func (r *Renderer) describe(ev activity.Event) string {
	switch e := ev.(type) {
	case activity.Attack:
		won := e.Attacker == e.Winner
		opponent, outcome := e.WinnerName, "lost"
		if won {
			opponent, outcome = e.LoserName, "won"
		}
		return fmt.Sprintf("%s attacked %s and %s %s PTS!", e.AttackerName, opponent, outcome, FormatScore(parseFloat(e.ScoresWon)))
	case activity.Killed:
		winner := e.WinnerName
		if winner == "" {
			winner = "Plant #" + e.Killer
		}
		loser := e.LoserName
		if loser == "" {
			loser = "Plant #" + e.DeadID
		}
		return fmt.Sprintf("%s killed %s and claimed a star!", winner, loser)
	case activity.Mint:
		return fmt.Sprintf("Plant #%s, was born!", e.NftID)
	case activity.Played:
		return fmt.Sprintf("%s played %s and got %s PTS!", e.NftName, e.GameName, FormatScore(parseFloat(e.Points)))
	case activity.ItemConsumed:
		return fmt.Sprintf("%s consumed %s!", e.NftName, r.gardenName(e.ItemID))
	case activity.BundledConsumption:
		qty := ""
		if e.Count > 1 {
			qty = strconv.Itoa(e.Count) + "x "
		}
		return fmt.Sprintf("%s consumed %s%s!", e.NftName, qty, r.gardenName(e.ItemID))
	case activity.ShopItemPurchased:
		return fmt.Sprintf("%s bought %s from the shop!", e.NftName, r.shopName(e.ItemID))
	case activity.LandTransfer:
		return fmt.Sprintf("Land #%s was transferred!", e.TokenID)
	case activity.LandMinted:
		return fmt.Sprintf("A new land, Land #%s, was minted!", e.TokenID)
	case activity.LandNameChanged:
		return fmt.Sprintf("Land #%s was renamed to \"%s\"!", e.TokenID, e.Name)
	case activity.BuildingUpgrade:
		building := BuildingName(e.BuildingID, e.IsTown())
		if e.IsSpeedUp() {
			return fmt.Sprintf("Land #%s sped up %s construction!", e.LandID, building)
		}
		return fmt.Sprintf("Land #%s started upgrading %s!", e.LandID, building)
	case activity.QuestStarted:
		return fmt.Sprintf("Land #%s started a %s quest!", e.LandID, QuestDifficulty(e.Difficulty))
	case activity.QuestFinalized:
		return fmt.Sprintf("Land #%s completed a quest and earned %s!", e.LandID, QuestReward(e.RewardType, e.Amount))
	case activity.VillageProductionClaimed:
		return fmt.Sprintf("Land #%s claimed production from %s!", e.LandID, BuildingName(e.BuildingID, false))
	}
	return "Unknown event occurred"
}

func activityHeader(intervalMinutes int) string {
	return fmt.Sprintf("🪴 <b>Activity Report (%s)</b> 🪴", FormatPeriod(intervalMinutes))
}

// ActivityPage renders one page of a stored report. An empty page renders
// the quiet notice.
func (r *Renderer) ActivityPage(p pagination.Page) string {
	if len(p.Events) == 0 {
		return NoActivities(p.IntervalMinutes)
	}
	lines := make([]string, 0, len(p.Events)+2)
	lines = append(lines, activityHeader(p.IntervalMinutes), "")
	for _, ev := range p.Events {
		lines = append(lines, r.Event(ev))
	}
	return strings.Join(lines, "\n")
}

func NoActivities(intervalMinutes int) string {
	return activityHeader(intervalMinutes) + "\n\n😴 It's been quiet in the Pixotchi world!"
}

// ActivityError is shown in a chat whose report could not be built.
func ActivityError(msg string) string {
	return fmt.Sprintf("❌ Error: %s\n\nPlease try again later or contact an admin.", html.EscapeString(msg))
}

// Burn renders a burn report. Circulating supply is totalSupply minus
// everything burned so far.
func Burn(d burn.Data, totalSupply float64) string {
	circulating := totalSupply - d.TotalBurned
	return strings.Join([]string{
		fmt.Sprintf("🔥 <b>SEED Burn Report (%s)</b> 🔥", FormatPeriod(d.PeriodMinutes)),
		"",
		fmt.Sprintf("Burned: %s SEED", FormatLarge(d.BurnedInPeriod)),
		fmt.Sprintf("Total Burned: %s SEED", FormatLarge(d.TotalBurned)),
		fmt.Sprintf("Circulating Supply: %s SEED", FormatLarge(circulating)),
	}, "\n")
}

func (r *Renderer) BurnError(msg string) string {
	return strings.Join([]string{
		"🔥 <b>SEED Burn Report</b>",
		"Error • " + r.now().Format("15:04"),
		"",
		"❌ " + html.EscapeString(msg),
		"",
		"Contract connection issue - will retry next interval",
	}, "\n")
}

// ScheduledFailure is the plain-text admin notice for a failed scheduled
// report of the given kind ("activity" or "SEED burn").
func ScheduledFailure(kind string, err error) string {
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	return fmt.Sprintf("❌ Scheduled %s report failed: %s", kind, msg)
}

// Keyboard builds the navigation row for page of total. A single page
// has no keyboard.
func Keyboard(page, total int) [][]bus.Button {
	if total <= 1 {
		return nil
	}
	row := make([]bus.Button, 0, 3)
	if page > 1 {
		row = append(row, bus.Button{Text: "◀️ Prev", Data: PageCallback(page - 1)})
	}
	row = append(row, bus.Button{Text: fmt.Sprintf("%d/%d", page, total), Data: NoopCallback})
	if page < total {
		row = append(row, bus.Button{Text: "Next ▶️", Data: PageCallback(page + 1)})
	}
	return [][]bus.Button{row}
}

func PageCallback(page int) string {
	return PageCallbackPrefix + strconv.Itoa(page)
}

// ParsePageCallback extracts the page number from navigation callback data.
func ParsePageCallback(data string) (int, bool) {
	rest, ok := strings.CutPrefix(data, PageCallbackPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
