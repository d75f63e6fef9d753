package gateway

import (
	"fmt"
	"strings"

	"github.com/stellarlinkco/pixbot/internal/cron"
	"github.com/stellarlinkco/pixbot/internal/report"
)

const (
	msgAccessDenied   = "❌ Access denied. Admin privileges required."
	msgChatNotAllowed = "❌ This command can only be used in the configured chat or by admins."
	msgUnknownCommand = "❓ Unknown command. Use /start to see available commands."
	msgInvalidRange   = "❌ Invalid interval. Please specify a number between 5 and 1440 minutes (24 hours)."
	msgNoActivities   = "No activities to navigate"
	msgTesting        = "🔄 Testing connections..."
	msgForceActivity  = "🔄 Generating immediate activity report..."
	msgForceBurn      = "🔄 Generating immediate SEED burn report..."
	msgRestarting     = "🔄 Restarting both schedulers..."
	msgRestarted      = "✅ Both schedulers restarted successfully!"
)

const statusTimeLayout = "2006-01-02 15:04:05 MST"

func welcomeText() string {
	return strings.Join([]string{
		"🔥 <b>Pixotchi Activity Bot</b>",
		"",
		"I monitor the Pixotchi blockchain game and SEED token burns, reporting at regular intervals.",
		"",
		"<b>Available Commands:</b>",
		"• <code>/activities</code> - Show current activity report",
		"• <code>/seedburn</code> - Show current SEED burn report",
		"• <code>/start</code> - Show this welcome message",
		"",
		"Admins can use <code>/admin_help</code> for additional commands.",
		"",
		"🎮 Join the Pixotchi community and start playing!",
	}, "\n")
}

func adminHelpText(targetChat int64, activity, burn cron.Status) string {
	state := "Stopped"
	if activity.Running {
		state = "Running"
	}
	return strings.Join([]string{
		"🔧 <b>Admin Commands</b>",
		"",
		"<b>Activity Reports:</b>",
		"<code>/admin_interval &lt;minutes&gt;</code> - Set activity interval (5-1440 minutes)",
		"<code>/admin_force</code> - Force immediate activity report",
		"",
		"<b>SEED Burn Reports:</b>",
		"<code>/admin_seed_interval &lt;minutes&gt;</code> - Set SEED burn interval (5-1440 minutes)",
		"<code>/admin_seed_force</code> - Force immediate SEED burn report",
		"",
		"<b>System:</b>",
		"<code>/admin_status</code> - Show bot status and settings",
		"<code>/admin_test</code> - Test all connections",
		"<code>/admin_restart</code> - Restart both schedulers",
		"",
		"📊 <b>Current Settings</b>",
		fmt.Sprintf("• Target chat: %d", targetChat),
		fmt.Sprintf("• Activity interval: %dm", activity.IntervalMinutes),
		fmt.Sprintf("• SEED burn interval: %dm", burn.IntervalMinutes),
		"• Status: " + state,
	}, "\n")
}

func usageText(command, example string) string {
	return fmt.Sprintf("❌ Usage: <code>/%s &lt;minutes&gt;</code>\nExample: <code>/%s %s</code>", command, command, example)
}

type statusView struct {
	Activity    cron.Status
	Burn        cron.Status
	TargetChat  int64
	ShopItems   int
	GardenItems int
	IndexerURL  string
	Contract    string
}

func statusText(v statusView) string {
	lines := []string{
		"📊 <b>Bot Status</b>",
		"",
		"<b>Activity Reports:</b>",
		"🔄 Status: " + runningLabel(v.Activity.Running),
		"⏰ Interval: " + report.FormatPeriod(v.Activity.IntervalMinutes),
	}
	if v.Activity.Running {
		lines = append(lines, "📅 Next Activity: "+v.Activity.NextFireEstimate.Format(statusTimeLayout))
	}
	lines = append(lines,
		"",
		"<b>SEED Burn Reports:</b>",
		"🔥 Status: "+runningLabel(v.Burn.Running),
		"⏰ Interval: "+report.FormatPeriod(v.Burn.IntervalMinutes),
	)
	if v.Burn.Running {
		lines = append(lines, "📅 Next SEED: "+v.Burn.NextFireEstimate.Format(statusTimeLayout))
	}
	lines = append(lines,
		"",
		"<b>System:</b>",
		fmt.Sprintf("🎯 Target Chat: %d", v.TargetChat),
		fmt.Sprintf("📦 Shop items: %d", v.ShopItems),
		fmt.Sprintf("📦 Garden items: %d", v.GardenItems),
		"🌐 API: "+v.IndexerURL,
		"🔗 SEED Contract: "+contractPrefix(v.Contract),
	)
	return strings.Join(lines, "\n")
}

func connectionTestText(indexer, contract bool) string {
	lines := []string{
		"<b>Connection Test Results:</b>",
		"",
		"📊 Indexer: " + connectedLabel(indexer),
		"🔥 SEED Contract: " + connectedLabel(contract),
		"",
	}
	if indexer && contract {
		lines = append(lines, "✅ All connections successful!")
	} else {
		lines = append(lines, "⚠️ Some connections failed. Check logs for details.")
	}
	return strings.Join(lines, "\n")
}

// humanInterval spells out an admin-chosen cadence, e.g. "2 hours 15m".
func humanInterval(minutes int) string {
	if minutes < 60 {
		return plural(minutes, "minute")
	}
	s := plural(minutes/60, "hour")
	if m := minutes % 60; m != 0 {
		s += fmt.Sprintf(" %dm", m)
	}
	return s
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func runningLabel(running bool) string {
	if running {
		return "✅ Running"
	}
	return "❌ Stopped"
}

func connectedLabel(ok bool) string {
	if ok {
		return "✅ Connected"
	}
	return "❌ Failed"
}

func contractPrefix(addr string) string {
	if len(addr) > 8 {
		addr = addr[:8]
	}
	return addr + "..."
}
