package domain

// LinkedAccount is the per-athlete credential record persisted by the store.
// JSON keys match the on-disk accounts file. The zero value is the valid
// "unlinked" state: an athlete Strava has told us about but who is not
// currently associated with any Discord user.
type LinkedAccount struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	DiscordID    string `json:"discordId,omitempty"`
	Photo        string `json:"photo,omitempty"`
}

// Linked reports whether the record is associated with a Discord user.
func (a LinkedAccount) Linked() bool {
	return a.DiscordID != ""
}
