package domain

import "time"

// Activity is the subset of Strava's activity detail response that the
// notification pipeline consumes. Field names follow Strava's API.
type Activity struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	SportType            string    `json:"sport_type"`
	Description          string    `json:"description"`
	Distance             float64   `json:"distance"`
	MovingTime           int       `json:"moving_time"`
	ElapsedTime          int       `json:"elapsed_time"`
	TotalElevationGain   float64   `json:"total_elevation_gain"`
	AverageSpeed         float64   `json:"average_speed"`
	MaxSpeed             float64   `json:"max_speed"`
	AverageHeartrate     float64   `json:"average_heartrate"`
	MaxHeartrate         float64   `json:"max_heartrate"`
	Calories             float64   `json:"calories"`
	AverageWatts         float64   `json:"average_watts"`
	WeightedAverageWatts float64   `json:"weighted_average_watts"`
	StartDate            time.Time `json:"start_date"`
}

// WebhookEvent is the push payload Strava delivers for subscription events.
type WebhookEvent struct {
	AspectType string `json:"aspect_type" validate:"required"`
	ObjectID   int64  `json:"object_id" validate:"required"`
	ObjectType string `json:"object_type" validate:"required"`
	OwnerID    int64  `json:"owner_id" validate:"required"`
}

// Webhook event values that trigger the notification pipeline.
const (
	ObjectTypeActivity = "activity"
	AspectTypeCreate   = "create"
)
