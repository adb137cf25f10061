// Package activity turns Strava webhook events into Discord channel
// notifications: fetch the activity detail, convert units, compose the
// embed content, and hand it to the notifier.
package activity

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/osse101/KudosBot_Go/internal/domain"
	"github.com/osse101/KudosBot_Go/internal/logger"
	"github.com/osse101/KudosBot_Go/internal/metrics"
	"github.com/osse101/KudosBot_Go/internal/store"
	"github.com/osse101/KudosBot_Go/internal/strava"
)

// Fetcher retrieves activity detail from Strava on behalf of an athlete.
type Fetcher interface {
	Activity(ctx context.Context, athleteID string, activityID int64) (*domain.Activity, error)
}

// Notification is the composed message handed to the notifier.
type Notification struct {
	Title       string
	Description string
	URL         string
	ImageURL    string
	Timestamp   time.Time
	Fields      []Field
}

// Field is one labeled value on the notification.
type Field struct {
	Name  string
	Value string
}

// Notifier delivers a composed notification to the chat channel.
type Notifier interface {
	SendActivity(ctx context.Context, n Notification) error
}

// Service is the activity enrichment pipeline.
type Service struct {
	fetcher  Fetcher
	store    store.Store
	notifier Notifier
}

// NewService creates the pipeline.
func NewService(fetcher Fetcher, st store.Store, notifier Notifier) *Service {
	return &Service{fetcher: fetcher, store: st, notifier: notifier}
}

// Process fetches the activity and delivers a notification. An athlete
// with no linked Discord user is expected; the pipeline ends silently.
func (s *Service) Process(ctx context.Context, athleteID string, activityID int64) error {
	log := logger.FromContext(ctx)
	log.Info("Processing activity", "athlete_id", athleteID, "activity_id", activityID)

	activity, err := s.fetcher.Activity(ctx, athleteID, activityID)
	if err != nil {
		return fmt.Errorf("failed to fetch activity %d: %w", activityID, err)
	}

	acct := s.store.GetOrDefault(athleteID)
	if !acct.Linked() {
		log.Debug("Athlete has no linked Discord user, skipping", "athlete_id", athleteID)
		return nil
	}

	n := Compose(activity, acct.DiscordID, acct.Photo)
	if err := s.notifier.SendActivity(ctx, n); err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}

	metrics.ActivitiesRelayed.Inc()
	return nil
}

// Compose builds the notification content for an activity. Fields whose
// source value is zero are omitted.
func Compose(activity *domain.Activity, discordID, photo string) Notification {
	link := strava.ActivityURL(activity.ID)

	description := fmt.Sprintf("<@%s> uploaded [a %s](%s)! Give them Kudos!",
		discordID, HumanizeSportType(activity.SportType), link)
	if activity.Description != "" {
		description += "\n\n" + activity.Description
	}

	var fields []Field
	addField := func(name, value string) {
		fields = append(fields, Field{Name: name, Value: value})
	}

	if activity.Distance != 0 {
		addField("Distance", MetersToMiles(activity.Distance)+" mi")
	}
	if activity.MovingTime != 0 {
		addField("Moving Time", FormatDuration(activity.MovingTime))
	}
	if activity.ElapsedTime != 0 {
		addField("Elapsed Time", FormatDuration(activity.ElapsedTime))
	}
	if activity.TotalElevationGain != 0 {
		addField("Elevation Gain", MetersToFeet(activity.TotalElevationGain)+" ft")
	}
	if activity.AverageSpeed != 0 {
		addField("Average Speed", MpsToMph(activity.AverageSpeed)+" mph")
	}
	if activity.MaxSpeed != 0 {
		addField("Max Speed", MpsToMph(activity.MaxSpeed)+" mph")
	}
	if activity.AverageHeartrate != 0 {
		addField("Average Heartrate", formatNumber(activity.AverageHeartrate)+" bpm")
	}
	if activity.MaxHeartrate != 0 {
		addField("Max Heartrate", formatNumber(activity.MaxHeartrate)+" bpm")
	}
	if activity.Calories != 0 {
		addField("Calories", formatNumber(activity.Calories)+" kcal")
	}
	if activity.AverageWatts != 0 {
		addField("Average Watts", formatNumber(activity.AverageWatts)+" W")
	}
	if activity.WeightedAverageWatts != 0 {
		addField("Normalized Power", formatNumber(activity.WeightedAverageWatts)+" W")
	}

	return Notification{
		Title:       activity.Name,
		Description: description,
		URL:         link,
		ImageURL:    photo,
		Timestamp:   activity.StartDate,
		Fields:      fields,
	}
}

// formatNumber renders a float without trailing zeros ("150", "147.3").
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
