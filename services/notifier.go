package services

import (
	"context"
	"encoding/json"
	"fmt"

	"quizduel/models"
	"quizduel/store"

	"github.com/rs/zerolog/log"
)

// Event tags handed to the delivery collaborator.
const (
	EventHostPlayerJoined = "host_player_joined"
	EventRoomStarted      = "room_started"
	EventYourTurn         = "your_turn"
	EventMatchComplete    = "match_complete"
	EventRematchRequested = "rematch_requested"
)

const notifierQueueSize = 256

// RoomEvents diffs two snapshots of the same room from observer's point of
// view. Several events may fire for one transition.
func RoomEvents(prev, cur *RoomState, observer uint) []string {
	if prev == nil || cur == nil {
		return nil
	}
	var events []string

	if cur.Status == models.RoomStatusLobby && prev.Status == models.RoomStatusLobby &&
		isHostIn(cur, observer) && countOpponents(prev, observer) == 0 && countOpponents(cur, observer) > 0 {
		events = append(events, EventHostPlayerJoined)
	}

	if cur.Status == models.RoomStatusActive && prev.Status != models.RoomStatusActive {
		events = append(events, EventRoomStarted)
	} else if cur.Mode == models.RoomModeAsync && cur.Status == models.RoomStatusActive && prev.Status == models.RoomStatusActive {
		mine := cur.ProgressOf(observer)
		if mine < cur.TotalQuestions {
			for _, player := range cur.Players {
				if player.UserID == observer {
					continue
				}
				before, after := prev.ProgressOf(player.UserID), cur.ProgressOf(player.UserID)
				if after > before && after > mine && before <= prev.ProgressOf(observer) {
					events = append(events, EventYourTurn)
					break
				}
			}
		}
	}

	if cur.Status == models.RoomStatusComplete && prev.Status != models.RoomStatusComplete {
		events = append(events, EventMatchComplete)
	}

	for _, id := range cur.RematchReady {
		if id != observer && !prev.IsRematchReady(id) {
			events = append(events, EventRematchRequested)
			break
		}
	}
	return events
}

func isHostIn(state *RoomState, userID uint) bool {
	for _, player := range state.Players {
		if player.UserID == userID {
			return player.Role == models.RoleHost
		}
	}
	return false
}

func countOpponents(state *RoomState, userID uint) int {
	n := 0
	for _, player := range state.Players {
		if player.UserID != userID {
			n++
		}
	}
	return n
}

// DeliveryContext is enough for the receiving app to deep-link into the room
// and to choose between an in-app banner and a system push.
type DeliveryContext struct {
	RoomCode string `json:"roomCode"`
	Status   string `json:"status"`
	Online   bool   `json:"online"`
}

// Deliverer hands an event to the push collaborator.
type Deliverer interface {
	Deliver(ctx context.Context, userID uint, event string, dc DeliveryContext) error
}

// Presence reports live gateway subscriptions.
type Presence interface {
	IsSubscribed(code string, userID uint) bool
}

// Notifier turns committed room updates into per-user events. Updates are
// queued and diffed on a single worker goroutine.
type Notifier struct {
	cache     store.SnapshotCache
	deliverer Deliverer
	presence  Presence
	updates   chan *RoomState
}

func NewNotifier(cache store.SnapshotCache, deliverer Deliverer, presence Presence) *Notifier {
	return &Notifier{
		cache:     cache,
		deliverer: deliverer,
		presence:  presence,
		updates:   make(chan *RoomState, notifierQueueSize),
	}
}

func (n *Notifier) OnRoomUpdate(ctx context.Context, update RoomUpdate) {
	select {
	case n.updates <- update.State:
	default:
		log.Warn().Str("room", update.State.Code).Msg("notification queue full, dropping update")
	}
}

// Run processes queued updates until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case state := <-n.updates:
			if err := n.process(ctx, state); err != nil {
				log.Error().Err(err).Str("room", state.Code).Msg("failed to process room notifications")
			}
		}
	}
}

func (n *Notifier) process(ctx context.Context, cur *RoomState) error {
	data, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	prevData, err := n.cache.Swap(ctx, cur.Code, data)
	if err != nil {
		return fmt.Errorf("swap snapshot: %w", err)
	}
	if prevData == nil {
		return nil
	}

	var prev RoomState
	if err := json.Unmarshal(prevData, &prev); err != nil {
		return fmt.Errorf("decode previous snapshot: %w", err)
	}

	for _, player := range cur.Players {
		events := RoomEvents(&prev, cur, player.UserID)
		if len(events) == 0 {
			continue
		}
		dc := DeliveryContext{RoomCode: cur.Code, Status: cur.Status}
		if n.presence != nil {
			dc.Online = n.presence.IsSubscribed(cur.Code, player.UserID)
		}
		for _, event := range events {
			if err := n.deliverer.Deliver(ctx, player.UserID, event, dc); err != nil {
				log.Warn().Err(err).Str("room", cur.Code).Uint("user", player.UserID).Str("event", event).Msg("notification delivery failed")
			}
		}
	}
	return nil
}
