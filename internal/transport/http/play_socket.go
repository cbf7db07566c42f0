package http

import (
	"encoding/json"
	"net/http"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ServeWS upgrades to the play socket. Each inbound "question" or "reward"
// message is answered in order on the same connection; the user id comes from
// the query string and overrides any id in reward payloads.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	h.metrics.SocketOpened()
	defer h.metrics.SocketClosed()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// Single writer: gorilla connections allow one concurrent writer.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "user_id", userID, "err", err)
				return
			}
		}
	}()

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		var reply outboundMessage[any]
		switch inbound.Type {
		case "question":
			var payload questionRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply = socketError("invalid question payload", "validation")
				break
			}
			q, ok, err := h.nextQuestion(ctx, payload)
			switch {
			case err != nil:
				reply = h.socketFailure(userID, "question", err)
			case !ok:
				reply = outboundMessage[any]{Type: "exhausted", Payload: exhaustedResponse{Exhausted: true, Message: "no names remaining"}}
			default:
				reply = outboundMessage[any]{Type: "question", Payload: q}
			}
		case "reward":
			var payload rewardRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply = socketError("invalid reward payload", "validation")
				break
			}
			payload.UserID = userID
			res, err := h.applyReward(ctx, payload)
			if err != nil {
				reply = h.socketFailure(userID, "reward", err)
				break
			}
			reply = outboundMessage[any]{Type: "rewardResult", Payload: res}
		default:
			reply = socketError("unsupported message type", "validation")
		}

		select {
		case send <- reply:
		case <-writerDone:
		}
	}

	close(send)
	<-writerDone
}

func (h *Handler) socketFailure(userID, op string, err error) outboundMessage[any] {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("ws request failed", "op", op, "user_id", userID, "err", err)
	}
	return socketError(err.Error(), code)
}

func socketError(message, code string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message, Code: code}}
}
