package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"team-duel-service/internal/app"
	"team-duel-service/internal/domain"
)

type WSHandler struct {
	manager  *app.CompetitionManager
	hub      *Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(manager *app.CompetitionManager, hub *Hub, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		manager: manager,
		hub:     hub,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Team       domain.TeamSide `json:"team"`
	QuestionID string          `json:"questionId"`
	OptionID   string          `json:"optionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the connection and wires it into the duel: the client
// receives a state frame on connect and after every transition of the
// match, and submits answers as {"type":"answer"} messages. A teammate
// winning the race comes back as a normal answerResult with
// alreadyResolved set, not an error.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("matchId")
	memberID := r.URL.Query().Get("memberId")
	if matchID == "" || memberID == "" {
		http.Error(w, "missing matchId or memberId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	initial, err := h.manager.GetMatch(r.Context(), matchID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel := h.hub.Subscribe(matchID)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Str("matchID", matchID).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "state", Payload: initial}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			view, err := h.manager.SubmitAnswer(r.Context(), matchID, payload.Team, memberID, payload.QuestionID, payload.OptionID)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: view.Outcome}
			send <- outboundMessage[any]{Type: "state", Payload: view}
		case "state":
			view, err := h.manager.GetMatch(r.Context(), matchID)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "state", Payload: view}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// statusFor maps the submission error taxonomy onto HTTP codes; shared
// with the REST handlers.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMatchNotFound), errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotTeamMember):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrMatchClosed), errors.Is(err, domain.ErrNotYourTurn),
		errors.Is(err, domain.ErrStaleQuestion), errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidMatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
