package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// AnalyticsMetrics holds aggregated analytics data
type AnalyticsMetrics struct {
	GamesStarted       int64          `json:"gamesStarted"`
	GamesFinished      int64          `json:"gamesFinished"`
	RoundsStarted      int64          `json:"roundsStarted"`
	CorrectGuesses     int64          `json:"correctGuesses"`
	WrongGuesses       int64          `json:"wrongGuesses"`
	Skips              int64          `json:"skips"`
	HintsUsed          int64          `json:"hintsUsed"`
	ExtraHintsUsed     int64          `json:"extraHintsUsed"`
	SuspiciousRounds   int64          `json:"suspiciousRounds"`
	Submissions        int64          `json:"submissions"`
	MaintenanceRuns    int64          `json:"maintenanceRuns"`
	BestStreak         int            `json:"bestStreak"`
	TotalAccuracy      float64        `json:"-"`
	GamesPerDifficulty map[string]int `json:"gamesPerDifficulty"`
	GamesPerHour       map[string]int `json:"gamesPerHour"`
	mu                 sync.RWMutex
}

func newAnalyticsMetrics() *AnalyticsMetrics {
	return &AnalyticsMetrics{
		GamesPerDifficulty: make(map[string]int),
		GamesPerHour:       make(map[string]int),
	}
}

// Consumer handles Kafka event consumption for analytics
type Consumer struct {
	consumer sarama.ConsumerGroup
	metrics  *AnalyticsMetrics
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	consumer, err := sarama.NewConsumerGroup(brokers, "guess-analytics", config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		consumer: consumer,
		metrics:  newAnalyticsMetrics(),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins consuming events
func (c *Consumer) Start() {
	go func() {
		for {
			if err := c.consumer.Consume(c.ctx, []string{TopicGuessEvents}, c); err != nil {
				log.Error().Err(err).Msg("Consumer error")
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()
	log.Info().Msg("Kafka consumer started")
}

// Setup is called at the beginning of a new session
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is called at the end of a session
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a partition
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		c.processMessage(msg.Value)
		session.MarkMessage(msg, "")
	}
	return nil
}

// processMessage folds a single event into the metrics
func (c *Consumer) processMessage(value []byte) {
	if !gjson.ValidBytes(value) {
		log.Warn().Int("bytes", len(value)).Msg("Dropping malformed event")
		return
	}
	event := gjson.ParseBytes(value)
	data := event.Get("data")

	c.metrics.mu.Lock()
	defer c.metrics.mu.Unlock()

	switch EventType(event.Get("type").String()) {
	case EventRoundStart:
		c.metrics.RoundsStarted++
		if data.Get("firstRound").Bool() {
			c.metrics.GamesStarted++
			c.metrics.GamesPerDifficulty[data.Get("difficulty").String()]++
		}
	case EventGuess:
		switch {
		case data.Get("correct").Bool():
			c.metrics.CorrectGuesses++
		case data.Get("skipped").Bool():
			c.metrics.Skips++
		default:
			c.metrics.WrongGuesses++
		}
	case EventHint:
		if data.Get("extra").Bool() {
			c.metrics.ExtraHintsUsed++
		} else {
			c.metrics.HintsUsed++
		}
	case EventSuspicious:
		c.metrics.SuspiciousRounds++
	case EventGameOver:
		c.metrics.GamesFinished++
		c.metrics.TotalAccuracy += data.Get("accuracy").Float()
		if streak := int(data.Get("streak").Int()); streak > c.metrics.BestStreak {
			c.metrics.BestStreak = streak
		}
		if ts := event.Get("timestamp").Time(); !ts.IsZero() {
			c.metrics.GamesPerHour[ts.UTC().Format("2006-01-02-15")]++
		}
	case EventScoreSubmitted:
		c.metrics.Submissions++
	case EventMaintenance:
		c.metrics.MaintenanceRuns++
	}
}

// GetMetrics returns a copy of the current metrics
func (c *Consumer) GetMetrics() *AnalyticsMetrics {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	m := c.metrics
	out := &AnalyticsMetrics{
		GamesStarted:       m.GamesStarted,
		GamesFinished:      m.GamesFinished,
		RoundsStarted:      m.RoundsStarted,
		CorrectGuesses:     m.CorrectGuesses,
		WrongGuesses:       m.WrongGuesses,
		Skips:              m.Skips,
		HintsUsed:          m.HintsUsed,
		ExtraHintsUsed:     m.ExtraHintsUsed,
		SuspiciousRounds:   m.SuspiciousRounds,
		Submissions:        m.Submissions,
		MaintenanceRuns:    m.MaintenanceRuns,
		BestStreak:         m.BestStreak,
		TotalAccuracy:      m.TotalAccuracy,
		GamesPerDifficulty: make(map[string]int, len(m.GamesPerDifficulty)),
		GamesPerHour:       make(map[string]int, len(m.GamesPerHour)),
	}
	for k, v := range m.GamesPerDifficulty {
		out.GamesPerDifficulty[k] = v
	}
	for k, v := range m.GamesPerHour {
		out.GamesPerHour[k] = v
	}
	return out
}

// GetAverageAccuracy returns the mean accuracy of finished games
func (c *Consumer) GetAverageAccuracy() float64 {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	if c.metrics.GamesFinished == 0 {
		return 0
	}
	return c.metrics.TotalAccuracy / float64(c.metrics.GamesFinished)
}

// GetGamesPerHour returns games finished in the last 24 hours by hour
func (c *Consumer) GetGamesPerHour() map[string]int {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	now := time.Now().UTC()
	result := make(map[string]int)

	for i := 0; i < 24; i++ {
		key := now.Add(-time.Duration(i) * time.Hour).Format("2006-01-02-15")
		result[key] = c.metrics.GamesPerHour[key]
	}

	return result
}

// Stop stops the consumer
func (c *Consumer) Stop() {
	c.cancel()
	c.consumer.Close()
}
