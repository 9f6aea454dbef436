package kafka

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/anime-guess/internal/game"
	"github.com/anime-guess/internal/storage"
)

const (
	TopicGuessEvents = "guess-events"
)

// EventType represents the type of game event
type EventType string

const (
	EventRoundStart     EventType = "round_start"
	EventGuess          EventType = "guess"
	EventHint           EventType = "hint"
	EventGameOver       EventType = "game_over"
	EventSuspicious     EventType = "suspicious"
	EventScoreSubmitted EventType = "score_submitted"
	EventMaintenance    EventType = "maintenance"
)

// Event represents a game event for analytics
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// RoundStartData contains data for round start events
type RoundStartData struct {
	PlayerID    string          `json:"playerId"`
	Difficulty  game.Difficulty `json:"difficulty"`
	CharacterID int             `json:"characterId"`
	FirstRound  bool            `json:"firstRound"`
}

// GuessData contains data for guess events
type GuessData struct {
	PlayerID  string `json:"playerId"`
	Correct   bool   `json:"correct"`
	Skipped   bool   `json:"skipped,omitempty"`
	Points    int    `json:"points"`
	Streak    int    `json:"streak"`
	LivesLeft int    `json:"livesLeft"`
}

// HintData contains data for hint events
type HintData struct {
	PlayerID string `json:"playerId"`
	Extra    bool   `json:"extra"`
}

// SuspiciousData contains data for suspicious activity events
type SuspiciousData struct {
	PlayerID    string `json:"playerId"`
	TabSwitches int    `json:"tabSwitches"`
}

// ScoreData contains data for leaderboard submissions
type ScoreData struct {
	UserID     string `json:"userId"`
	Difficulty string `json:"difficulty"`
	Streak     int    `json:"streak"`
	Points     int    `json:"points"`
	Suspicious bool   `json:"suspicious"`
}

// MaintenanceData contains data for maintenance runs
type MaintenanceData struct {
	Job     string `json:"job"`
	Changed int    `json:"changed"`
}

// Producer handles Kafka event production
type Producer struct {
	producer sarama.SyncProducer
	enabled  bool
}

// NewProducer creates a new Kafka producer. When no broker is reachable
// it returns a disabled producer whose Emit methods do nothing.
func NewProducer(brokers []string) *Producer {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		log.Warn().Err(err).Msg("Kafka producer not available (analytics disabled)")
		return &Producer{enabled: false}
	}

	log.Info().Strs("brokers", brokers).Msg("Kafka producer connected")
	return &Producer{producer: producer, enabled: true}
}

// EmitRoundStart emits a round start event
func (p *Producer) EmitRoundStart(sessionID, playerID string, d game.Difficulty, characterID int, first bool) {
	p.send(Event{
		Type:      EventRoundStart,
		SessionID: sessionID,
		Data: RoundStartData{
			PlayerID:    playerID,
			Difficulty:  d,
			CharacterID: characterID,
			FirstRound:  first,
		},
	})
}

// EmitGuess emits a guess or skip event
func (p *Producer) EmitGuess(sessionID, playerID string, res game.GuessResult, skipped bool) {
	p.send(Event{
		Type:      EventGuess,
		SessionID: sessionID,
		Data: GuessData{
			PlayerID:  playerID,
			Correct:   res.Correct,
			Skipped:   skipped,
			Points:    res.Points,
			Streak:    res.Streak,
			LivesLeft: res.LivesLeft,
		},
	})
}

// EmitHint emits a hint event
func (p *Producer) EmitHint(sessionID, playerID string, extra bool) {
	p.send(Event{
		Type:      EventHint,
		SessionID: sessionID,
		Data:      HintData{PlayerID: playerID, Extra: extra},
	})
}

// EmitSuspicious emits an event when a round is flagged
func (p *Producer) EmitSuspicious(sessionID, playerID string, tabSwitches int) {
	p.send(Event{
		Type:      EventSuspicious,
		SessionID: sessionID,
		Data:      SuspiciousData{PlayerID: playerID, TabSwitches: tabSwitches},
	})
}

// EmitGameOver emits a game over event with the final summary
func (p *Producer) EmitGameOver(summary game.Summary) {
	p.send(Event{
		Type:      EventGameOver,
		SessionID: summary.SessionID,
		Data:      summary,
	})
}

// EmitScoreSubmitted emits an accepted leaderboard submission
func (p *Producer) EmitScoreSubmitted(entry *storage.LeaderboardEntry) {
	p.send(Event{
		Type:      EventScoreSubmitted,
		SessionID: entry.SubmissionID,
		Data: ScoreData{
			UserID:     entry.UserID,
			Difficulty: entry.Difficulty,
			Streak:     entry.Streak,
			Points:     entry.Points,
			Suspicious: entry.Suspicious,
		},
	})
}

// EmitMaintenance emits the outcome of a maintenance run
func (p *Producer) EmitMaintenance(job string, changed int) {
	p.send(Event{
		Type: EventMaintenance,
		Data: MaintenanceData{Job: job, Changed: changed},
	})
}

// send sends an event to Kafka
func (p *Producer) send(event Event) {
	if !p.IsEnabled() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", string(event.Type)).Msg("Error marshaling event")
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: TopicGuessEvents,
		Key:   sarama.StringEncoder(event.SessionID),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		log.Error().Err(err).Str("type", string(event.Type)).Msg("Error sending event to Kafka")
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	if p != nil && p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// IsEnabled returns whether Kafka is enabled
func (p *Producer) IsEnabled() bool {
	return p != nil && p.enabled
}
