package natsbus

import "fmt"

// Topic patterns for NATS pub/sub telemetry.

func TopicGameFrames(gameID string) string {
	return fmt.Sprintf("games.%s.frames", gameID)
}

func TopicGameStatus(gameID string) string {
	return fmt.Sprintf("games.%s.status", gameID)
}

func TopicRunEvents(runID string) string {
	return fmt.Sprintf("runs.%s.events", runID)
}

const (
	TopicAllFrames = "games.*.frames"
	TopicAllStatus = "games.*.status"
	TopicAllRuns   = "runs.*.events"
	TopicAll       = ">"
)
