// verify_pace measures message inter-arrival times from a running sender.
// Usage: go run cmd/verify_pace/main.go ws://localhost:8765 [count]
//
// With the sender at --fps 10 the average should come out near 100ms.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: verify_pace <ws-url> [message-count]")
		os.Exit(1)
	}
	url := os.Args[1]
	count := 50
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil || n < 2 {
			fmt.Fprintf(os.Stderr, "invalid message count: %s\n", os.Args[2])
			os.Exit(1)
		}
		count = n
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Read the first message to prime the clock (ignore connect latency)
	_, first, err := conn.ReadMessage()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	prev := time.Now()

	received := 0
	var sum time.Duration
	var min, max time.Duration
	min = 100 * time.Second // Start high

	for received < count {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
		now := time.Now()
		delta := now.Sub(prev)
		prev = now

		sum += delta
		if delta < min {
			min = delta
		}
		if delta > max {
			max = delta
		}
		received++
	}

	if received > 0 {
		avg := sum / time.Duration(received)
		fmt.Printf("Messages: %d (%d bytes each) | Min: %v | Max: %v | Avg: %v\n",
			received, len(first), min, max, avg)
		fmt.Printf("Effective rate: %.2f msg/sec\n", float64(time.Second)/float64(avg))
	}
}
