package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/osse101/KudosBot_Go/internal/activity"
	"github.com/osse101/KudosBot_Go/internal/strava"
)

// ChannelNotifier delivers notifications to the configured Discord channel.
// It implements activity.Notifier.
type ChannelNotifier struct {
	session   *discordgo.Session
	channelID string
}

// NewChannelNotifier creates a notifier posting to channelID.
func NewChannelNotifier(session *discordgo.Session, channelID string) *ChannelNotifier {
	return &ChannelNotifier{session: session, channelID: channelID}
}

// SendActivity posts an activity embed with a link button to the channel.
func (n *ChannelNotifier) SendActivity(ctx context.Context, note activity.Notification) error {
	fields := make([]*discordgo.MessageEmbedField, 0, len(note.Fields))
	for _, f := range note.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: true,
		})
	}

	embed := &discordgo.MessageEmbed{
		Title:       note.Title,
		Description: note.Description,
		URL:         note.URL,
		Color:       EmbedColor,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: FooterText},
	}
	if !note.Timestamp.IsZero() {
		embed.Timestamp = note.Timestamp.Format(time.RFC3339)
	}
	if note.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: note.ImageURL}
	}

	_, err := n.session.ChannelMessageSendComplex(n.channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{linkButton("Strava", note.URL)},
	})
	if err != nil {
		return fmt.Errorf("failed to send channel message: %w", err)
	}
	return nil
}

// AnnounceLink posts a celebratory embed after a successful account link.
func (n *ChannelNotifier) AnnounceLink(ctx context.Context, discordID, athleteID string) error {
	embed := &discordgo.MessageEmbed{
		Title: "Strava Linked",
		Description: fmt.Sprintf("Successfully linked <@%s>'s [Strava account](%s) 🎉",
			discordID, strava.AthleteURL(athleteID)),
		Color:     EmbedColor,
		Footer:    &discordgo.MessageEmbedFooter{Text: FooterText},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	_, err := n.session.ChannelMessageSendComplex(n.channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		return fmt.Errorf("failed to send link announcement: %w", err)
	}
	return nil
}
