// Command channelcli is a small interactive peer for trying the channel by hand.
//
// Each input line is a method name optionally followed by a JSON object of
// arguments:
//
//	signInAnonymously
//	createUserWithEmailAndPassword {"email":"a@b.com","password":"secret123"}
//
// Replies and events are printed as they arrive.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/channel", "Channel WebSocket URL")
	origin := flag.String("origin", "", "Origin header to send (empty sends none)")
	flag.Parse()

	header := http.Header{}
	if *origin != "" {
		header.Set("Origin", *origin)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(*url, header)
	if err != nil {
		if resp != nil {
			log.Fatalf("Failed to connect to %s: %v (HTTP %d)", *url, err, resp.StatusCode)
		}
		log.Fatalf("Failed to connect to %s: %v", *url, err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", *url)
	log.Println("Type a method name and optional JSON arguments, one call per line.")

	go func() {
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				log.Printf("Connection closed: %v", err)
				os.Exit(0)
			}
			fmt.Println(formatFrame(frame, time.Now()))
		}
	}()

	if err := run(os.Stdin, conn); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// frameWriter is the subset of *websocket.Conn used to send calls
type frameWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// run reads calls from in and sends them until EOF
func run(in io.Reader, w frameWriter) error {
	scanner := bufio.NewScanner(in)
	id := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		method, args, err := parseLine(line)
		if err != nil {
			log.Printf("⚠️  %v", err)
			continue
		}

		id++
		frame, err := json.Marshal(map[string]any{"id": id, "method": method, "arguments": args})
		if err != nil {
			return fmt.Errorf("failed to encode call: %w", err)
		}
		if err := w.WriteMessage(websocket.TextMessage, frame); err != nil {
			return fmt.Errorf("failed to send call: %w", err)
		}
	}
	return scanner.Err()
}

// parseLine splits "method {json}" into the method and its arguments
func parseLine(line string) (string, map[string]any, error) {
	method, rest, _ := strings.Cut(line, " ")
	args := map[string]any{}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return method, args, nil
	}

	dec := json.NewDecoder(strings.NewReader(rest))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return "", nil, fmt.Errorf("invalid arguments for %s: %w", method, err)
	}
	return method, args, nil
}

// formatFrame pretty prints an inbound frame with a heading
func formatFrame(frame []byte, at time.Time) string {
	var decoded map[string]any
	if err := json.Unmarshal(frame, &decoded); err != nil {
		return fmt.Sprintf("=== Unreadable frame at %s ===\n%s", at.Format("15:04:05"), frame)
	}

	heading := "Reply"
	if event, ok := decoded["event"].(string); ok {
		heading = "Event " + event
	} else if id, ok := decoded["id"]; ok {
		heading = fmt.Sprintf("Reply #%v", id)
	}

	formatted, _ := json.MarshalIndent(decoded, "", "  ")
	return fmt.Sprintf("=== %s at %s ===\n%s", heading, at.Format("15:04:05"), formatted)
}
