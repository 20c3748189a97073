package mlhttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/urfu-lab/studyhub/core/chat"
)

type (
	messageRequest struct {
		Message string `json:"message"`
		ChatID  string `json:"chat_id"`
	}

	editRequest struct {
		Message string `json:"message"`
	}

	createChatRequest struct {
		Title string `json:"title"`
	}

	chatsResponse struct {
		Chats []chat.Chat `json:"chats"`
	}

	historyResponse struct {
		Messages []chat.Message `json:"messages"`
	}
)

// eventStream writes server-sent events. The headers go out with the first event.
type eventStream struct {
	w       http.ResponseWriter
	started bool
}

func (es *eventStream) send(v interface{}) error {
	if !es.started {
		h := es.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		es.w.WriteHeader(http.StatusOK)
		es.started = true
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(es.w, "data: %s\n\n", bytes.TrimRight(buf.Bytes(), "\n")); err != nil {
		return err
	}
	if f, ok := es.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func (s *server) sendMessage(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	var data messageRequest
	if err := decode(r, &data); err != nil {
		s.writeError(w, r, err)
		return
	}
	chatID, err := uuid.Parse(data.ChatID)
	if err != nil {
		s.writeError(w, r, errInvalidChatID)
		return
	}

	stream := &eventStream{w: w}
	msg, err := s.opts.ChatSvc.Send(r.Context(), u.ExternalUserID, chatID, data.Message, func(chunk string) error {
		return stream.send(map[string]string{"content": chunk})
	})
	if err != nil {
		if !stream.started {
			s.writeError(w, r, err)
			return
		}
		if r.Context().Err() != nil {
			return
		}
		s.opts.Logger.Error("streaming answer failed", err, requestInfo(r))
		_ = stream.send(map[string]string{"error": streamErrorText(err)})
		return
	}
	_ = stream.send(map[string]interface{}{"message_id": msg.ID, "done": true})
}

func streamErrorText(err error) string {
	if hErr := toHTTPError(err); hErr != nil {
		return hErr.detail
	}
	return "failed to generate the answer"
}

func (s *server) listChats(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	chats, err := s.opts.ChatSvc.ListChats(r.Context(), u.ExternalUserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatsResponse{Chats: chats})
}

func (s *server) createChat(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	var data createChatRequest
	if err := decode(r, &data); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.opts.ChatSvc.CreateChat(r.Context(), u.ExternalUserID, data.Title)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *server) deleteChat(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	id, err := uuid.Parse(mux.Vars(r)["chat_id"])
	if err != nil {
		s.writeError(w, r, chat.ErrNotFound)
		return
	}
	res, err := s.opts.ChatSvc.DeleteChat(r.Context(), u.ExternalUserID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) history(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	id, err := uuid.Parse(r.URL.Query().Get("chat_id"))
	if err != nil {
		s.writeError(w, r, errInvalidChatID)
		return
	}
	msgs, err := s.opts.ChatSvc.History(r.Context(), u.ExternalUserID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Messages: msgs})
}

func (s *server) editMessage(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	id, err := uuid.Parse(mux.Vars(r)["message_id"])
	if err != nil {
		s.writeError(w, r, chat.ErrMessageNotFound)
		return
	}
	var data editRequest
	if err = decode(r, &data); err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := s.opts.ChatSvc.EditMessage(r.Context(), u.ExternalUserID, id, data.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
