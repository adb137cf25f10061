package discord

// User-facing message and embed constants.
const (
	MsgLinkPrompt     = "Link Strava"
	MsgUnlinked       = "Unlinked Strava"
	MsgUnableToUnlink = "Unable to unlink Strava."

	// FooterText appears on every notification embed.
	FooterText = "Link your Strava with /link"

	// EmbedColor is the Strava-green accent used on all embeds.
	EmbedColor = 0x63FC30
)
