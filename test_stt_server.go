package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Standalone fake transcription service for manual testing:
//
//	go run test_stt_server.go
//
// It speaks the same JSON envelope as the real service and returns a canned
// transcript for whatever audio it receives.

type statusMessage struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type transcriptMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

type envelope struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func sendStatus(conn *websocket.Conn, status string) error {
	data, err := json.Marshal(statusMessage{Type: "status", Status: status})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func sendTranscript(conn *websocket.Conn, text string, isFinal bool) error {
	data, err := json.Marshal(transcriptMessage{Type: "transcript", Text: text, IsFinal: isFinal})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func sessionHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("Session opened from %s", r.RemoteAddr)

	if err := sendStatus(conn, "ready"); err != nil {
		log.Printf("Write failed: %v", err)
		return
	}

	audioBytes := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Session closed: %v", err)
			return
		}

		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Bad frame: %v", err)
			continue
		}

		switch msg.Type {
		case "start":
			audioBytes = 0
			log.Printf("Recording started")
			if err := sendStatus(conn, "recording"); err != nil {
				return
			}

		case "audio":
			audioBytes += len(msg.Data)
			log.Printf("Received audio payload (%d base64 chars)", len(msg.Data))

		case "stop":
			log.Printf("Recording stopped, %d base64 chars total", audioBytes)
			if err := sendStatus(conn, "processing"); err != nil {
				return
			}

			// Simulate recognition latency with a partial then a final
			time.Sleep(200 * time.Millisecond)
			if err := sendTranscript(conn, "this is a test", false); err != nil {
				return
			}
			time.Sleep(300 * time.Millisecond)
			text := fmt.Sprintf("This is a test transcript for %d bytes of audio.", audioBytes)
			if err := sendTranscript(conn, text, true); err != nil {
				return
			}
			if err := sendStatus(conn, "ready"); err != nil {
				return
			}

		default:
			log.Printf("Ignoring message type %q", msg.Type)
		}
	}
}

func main() {
	http.HandleFunc("/stt", sessionHandler)

	addr := ":8765"
	log.Printf("Fake STT service listening on ws://localhost%s/stt", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
