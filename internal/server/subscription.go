package server

import (
	"fmt"
	"net/http"
	"time"

	"gihan9a/positionmodeler/internal/utils"
	"gihan9a/positionmodeler/pkg/modelerapi"

	"github.com/goccy/go-json"
	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/wI2L/jsondiff"
)

const (
	// 209 is the status code for a successful Braid subscription
	statusSubscribed = 209

	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// AddSubscription registers a new subscriber to the ordered collection
func (s *PositionServer) AddSubscription() Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := Subscription{
		ID:      utils.NewID(),
		Updates: make(chan []byte, 1),
	}
	s.subscriptions[sub.ID] = sub

	glog.V(1).Infof("Added subscription %s", sub.ID)
	return sub
}

// RemoveSubscription removes a subscription
func (s *PositionServer) RemoveSubscription(subID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[subID]; exists {
		delete(s.subscriptions, subID)
		glog.V(1).Infof("Removed subscription %s", subID)
	}
}

// notifySubscribers hands newData to every subscriber. A subscriber that has
// not consumed its previous snapshot gets the newer one instead.
func (s *PositionServer) notifySubscribers(newData []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.subscriptions) == 0 {
		return
	}
	glog.V(2).Infof("Notifying %d subscribers", len(s.subscriptions))

	for _, sub := range s.subscriptions {
		select {
		case <-sub.Updates:
		default:
		}
		select {
		case sub.Updates <- newData:
		default:
		}
	}
}

// subscribe streams the ordered collection as Braid updates until the client
// disconnects
func (s *PositionServer) subscribe(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sub := s.AddSubscription()
	defer s.RemoveSubscription(sub.ID)

	data, err := s.snapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	hash := utils.CalculateHash(data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Subscribe", "true")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(statusSubscribed)

	if err := sendFullUpdate(w, flusher, data, hash); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case newData := <-sub.Updates:
			newHash := utils.CalculateHash(newData)
			if newHash == hash {
				glog.V(2).Infof("Positions unchanged for subscription %s, skipping update", sub.ID)
				continue
			}
			if err := sendPatchUpdate(w, flusher, data, hash, newData, newHash); err != nil {
				glog.Warningf("Error sending patch update: %v, falling back to full update", err)
				if err := sendFullUpdate(w, flusher, newData, newHash); err != nil {
					return
				}
			}
			data, hash = newData, newHash
		}
	}
}

// sendFullUpdate sends the whole collection to a subscriber
func sendFullUpdate(w http.ResponseWriter, f http.Flusher, data []byte, hash string) error {
	fmt.Fprintf(w, "Version: %s\r\n", hash)
	fmt.Fprintf(w, "Parents: \r\n")
	fmt.Fprintf(w, "Content-Length: %d\r\n", len(data))
	fmt.Fprintf(w, "\r\n")

	if _, err := w.Write(data); err != nil {
		return err
	}

	// Add separator for subscription stream
	fmt.Fprintf(w, "\r\n\r\n\r\n\r\n\r\n")
	f.Flush()
	return nil
}

// sendPatchUpdate sends the changes between two snapshots to a subscriber
func sendPatchUpdate(w http.ResponseWriter, f http.Flusher, oldData []byte, oldHash string, newData []byte, newHash string) error {
	patchOperations, err := jsondiff.CompareJSON(oldData, newData)
	if err != nil {
		return err
	}

	if len(patchOperations) == 0 {
		return nil
	}

	fmt.Fprintf(w, "Version: %s\r\n", newHash)
	fmt.Fprintf(w, "Parents: %s\r\n", oldHash)

	if len(patchOperations) > 1 {
		fmt.Fprintf(w, "Patches: %d\r\n\r\n", len(patchOperations))
	}

	for i, op := range patchOperations {
		if i > 0 {
			fmt.Fprintf(w, "\r\n\r\n")
		}

		valueJSON, err := json.Marshal(op.Value)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Content-Length: %d\r\n", len(valueJSON))
		fmt.Fprintf(w, "Content-Range: %s %s\r\n", op.Type, op.Path)
		fmt.Fprintf(w, "\r\n")
		if _, err := w.Write(valueJSON); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\r\n\r\n\r\n\r\n\r\n")
	f.Flush()
	return nil
}

// buildUpdate describes newData relative to oldData as a websocket message.
// With no previous snapshot the update carries the full body.
func buildUpdate(oldData []byte, oldHash string, newData []byte, newHash string) (*modelerapi.Update, error) {
	update := &modelerapi.Update{Version: []string{newHash}, Parents: []string{}}
	if oldData == nil {
		update.Body = newData
		return update, nil
	}

	patchOperations, err := jsondiff.CompareJSON(oldData, newData)
	if err != nil {
		return nil, err
	}
	update.Parents = []string{oldHash}
	for _, op := range patchOperations {
		content, err := json.Marshal(op.Value)
		if err != nil {
			return nil, err
		}
		update.Patches = append(update.Patches, modelerapi.Patch{
			Unit:    op.Type,
			Range:   op.Path,
			Content: content,
		})
	}
	return update, nil
}

// handleWebsocket follows the ordered collection over a websocket, one Update
// message per change
func (s *PositionServer) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.originAllowed}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := s.AddSubscription()
	defer s.RemoveSubscription(sub.ID)

	// The read loop only exists to observe the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(update *modelerapi.Update) error {
		message, err := json.Marshal(update)
		if err != nil {
			return err
		}
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteMessage(websocket.TextMessage, message)
	}

	data, err := s.snapshot(r.Context())
	if err != nil {
		glog.Warningf("Error reading positions for websocket: %v", err)
		return
	}
	hash := utils.CalculateHash(data)
	initial, _ := buildUpdate(nil, "", data, hash)
	if err := send(initial); err != nil {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case newData := <-sub.Updates:
			newHash := utils.CalculateHash(newData)
			if newHash == hash {
				continue
			}
			update, err := buildUpdate(data, hash, newData, newHash)
			if err != nil {
				glog.Warningf("Error building websocket update: %v, falling back to full update", err)
				update, _ = buildUpdate(nil, "", newData, newHash)
			}
			if err := send(update); err != nil {
				return
			}
			data, hash = newData, newHash
		}
	}
}
