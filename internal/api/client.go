// Package api wraps the remote game API: action submission, scorecard
// lifecycle, and the playable games listing.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mtzanidakis/gridswarm/internal/config"
	"github.com/mtzanidakis/gridswarm/internal/game"
)

type Client struct {
	rootURL string
	key     string
	http    *http.Client
}

func New(cfg config.APIConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		rootURL: cfg.RootURL,
		key:     cfg.Key,
		http:    &http.Client{Timeout: timeout},
	}
}

// SubmitAction posts one action and parses the resulting frame. A remote
// game error ({"error": ...} in an otherwise well-formed response) is
// logged but non-fatal; the body is still parsed as a frame when it
// validates. An error return means no frame arrived this turn.
func (c *Client) SubmitAction(ctx context.Context, action game.GameAction, guid, cardID string) (game.FrameData, error) {
	if err := action.Validate(); err != nil {
		return game.FrameData{}, fmt.Errorf("validate action: %w", err)
	}

	body := action.Data()
	if action.ID == game.ActionReset && cardID != "" {
		body["card_id"] = cardID
	}
	if guid != "" {
		body["guid"] = guid
	}
	if len(action.Reasoning) > 0 {
		body["reasoning"] = json.RawMessage(action.Reasoning)
	}

	data, err := c.post(ctx, "/api/cmd/"+action.ID.String(), body)
	if err != nil {
		return game.FrameData{}, err
	}

	if remoteErr := errorField(data); remoteErr != nil {
		slog.Warn("api reported game error", "action", action.ID.String(), "game", action.GameID, "error", remoteErr)
	}

	frame, err := game.ParseFrame(data)
	if err != nil {
		return game.FrameData{}, err
	}
	return frame, nil
}

// OpenScorecard opens a new scorecard and returns its card id.
func (c *Client) OpenScorecard(ctx context.Context, tags []string) (string, error) {
	body := map[string]any{}
	if len(tags) > 0 {
		body["tags"] = tags
	}
	data, err := c.post(ctx, "/api/scorecard/open", body)
	if err != nil {
		return "", err
	}
	if remoteErr := errorField(data); remoteErr != nil {
		return "", fmt.Errorf("open scorecard: %v", remoteErr)
	}
	var resp struct {
		CardID string `json:"card_id"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode scorecard open response: %w", err)
	}
	if resp.CardID == "" {
		return "", fmt.Errorf("scorecard open returned empty card_id")
	}
	return resp.CardID, nil
}

// CloseScorecard closes the card and returns the final aggregate record.
// The remote side treats closing an already-closed card as a no-op.
func (c *Client) CloseScorecard(ctx context.Context, cardID string) (game.Scorecard, error) {
	data, err := c.post(ctx, "/api/scorecard/close", map[string]any{"card_id": cardID})
	if err != nil {
		return game.Scorecard{}, err
	}
	if remoteErr := errorField(data); remoteErr != nil {
		return game.Scorecard{}, fmt.Errorf("close scorecard: %v", remoteErr)
	}
	var card game.Scorecard
	if err := json.Unmarshal(data, &card); err != nil {
		return game.Scorecard{}, fmt.Errorf("decode scorecard: %w", err)
	}
	return card, nil
}

// GetScorecard fetches the per-game scorecard document. The shape is
// remote-defined, so it stays a raw map.
func (c *Client) GetScorecard(ctx context.Context, cardID, gameID string) (map[string]any, error) {
	data, err := c.get(ctx, "/api/scorecard/"+cardID+"/"+gameID)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode scorecard: %w", err)
	}
	if remoteErr := doc["error"]; remoteErr != nil {
		slog.Warn("api reported scorecard error", "card", cardID, "game", gameID, "error", remoteErr)
	}
	return doc, nil
}

// ListGames returns the playable game ids.
func (c *Client) ListGames(ctx context.Context) ([]string, error) {
	data, err := c.get(ctx, "/api/games")
	if err != nil {
		return nil, err
	}
	var entries []struct {
		GameID string `json:"game_id"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode games list: %w", err)
	}
	games := make([]string, 0, len(entries))
	for _, e := range entries {
		games = append(games, e.GameID)
	}
	return games, nil
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rootURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rootURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("X-API-Key", c.key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

// errorField extracts a non-empty "error" field from a JSON document.
func errorField(data []byte) any {
	var probe struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil
	}
	return probe.Error
}
