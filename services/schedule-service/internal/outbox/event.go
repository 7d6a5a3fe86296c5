package outbox

import (
	"encoding/json"
	"time"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (production-style: event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	EventAvailabilityUpdated = "schedule.availability.updated.v1"
	EventBlockCreated        = "schedule.block.created.v1"
	EventBlockDeleted        = "schedule.block.deleted.v1"
)

type availabilityUpdatedPayload struct {
	PracticeID string    `json:"practice_id"`
	ProviderID string    `json:"provider_id"`
	Weekday    int       `json:"weekday"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func AvailabilityUpdated(practiceID, providerID string, weekday int) Event {
	payload, _ := json.Marshal(availabilityUpdatedPayload{
		PracticeID: practiceID,
		ProviderID: providerID,
		Weekday:    weekday,
		UpdatedAt:  time.Now().UTC(),
	})
	return Event{
		AggregateType: "provider_schedule",
		AggregateID:   providerID,
		EventType:     EventAvailabilityUpdated,
		Payload:       payload,
	}
}

type blockPayload struct {
	BlockID    string     `json:"block_id"`
	PracticeID string     `json:"practice_id"`
	ProviderID string     `json:"provider_id"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
}

func BlockCreated(blockID, practiceID, providerID string, startTime, endTime time.Time) Event {
	payload, _ := json.Marshal(blockPayload{
		BlockID:    blockID,
		PracticeID: practiceID,
		ProviderID: providerID,
		StartTime:  &startTime,
		EndTime:    &endTime,
	})
	return Event{
		AggregateType: "provider_schedule",
		AggregateID:   providerID,
		EventType:     EventBlockCreated,
		Payload:       payload,
	}
}

func BlockDeleted(blockID, practiceID, providerID string) Event {
	payload, _ := json.Marshal(blockPayload{
		BlockID:    blockID,
		PracticeID: practiceID,
		ProviderID: providerID,
	})
	return Event{
		AggregateType: "provider_schedule",
		AggregateID:   providerID,
		EventType:     EventBlockDeleted,
		Payload:       payload,
	}
}
