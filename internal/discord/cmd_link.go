package discord

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/osse101/KudosBot_Go/internal/domain"
	"github.com/osse101/KudosBot_Go/internal/linktoken"
	"github.com/osse101/KudosBot_Go/internal/store"
	"github.com/osse101/KudosBot_Go/internal/strava"
)

// Deps are the collaborators the link commands need.
type Deps struct {
	Broker    *linktoken.Broker
	Store     store.Store
	Strava    *strava.Client
	ChannelID string
}

// LinkCommand returns the /link command definition and handler. It mints a
// one-time token for the invoking user and replies with an ephemeral
// button opening the Strava authorization page.
func LinkCommand(deps Deps) (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "link",
		Description: "Link your Strava!",
	}

	handler := func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if !requireChannel(s, i, deps.ChannelID) {
			return
		}

		user := getInteractionUser(i)
		token, err := deps.Broker.Mint(user.ID)
		if err != nil {
			slog.Error("Failed to mint link token", "error", err)
			respondEphemeral(s, i, "Something went wrong. Please try again.")
			return
		}

		row := linkButton(MsgLinkPrompt, deps.Strava.AuthorizeURL(token))
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:    MsgLinkPrompt,
				Flags:      discordgo.MessageFlagsEphemeral,
				Components: []discordgo.MessageComponent{row},
			},
		}); err != nil {
			slog.Error("Failed to send link response", "error", err)
		}
	}

	return cmd, handler
}

// UnlinkCommand returns the /unlink command definition and handler. It
// revokes the Strava authorization (refresh suppressed: a successful
// revoke invalidates the token anyway) and clears the stored record
// regardless of the revocation outcome.
func UnlinkCommand(deps Deps) (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "unlink",
		Description: "Unlink your Strava!",
	}

	handler := func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if !requireChannel(s, i, deps.ChannelID) {
			return
		}

		user := getInteractionUser(i)
		athleteID, err := deps.Store.AthleteIDByDiscordID(user.ID)
		if err != nil {
			if !errors.Is(err, domain.ErrAccountNotLinked) {
				slog.Error("Reverse lookup failed", "error", err)
			}
			respondEphemeral(s, i, MsgUnableToUnlink)
			return
		}

		if err := deps.Strava.Deauthorize(context.Background(), athleteID); err != nil {
			// The record is cleared either way; a failed revoke usually
			// means the token was already invalid.
			slog.Warn("Deauthorize failed", "athlete_id", athleteID, "error", err)
		}

		if err := deps.Store.Upsert(athleteID, domain.LinkedAccount{}); err != nil {
			slog.Error("Failed to clear account record", "athlete_id", athleteID, "error", err)
			respondEphemeral(s, i, MsgUnableToUnlink)
			return
		}

		respondEphemeral(s, i, MsgUnlinked)
	}

	return cmd, handler
}
