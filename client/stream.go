package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"slateboard/domain"
)

// Stream is an open server-sent event connection. Events arrive on Events
// in server order; the channel is closed when the connection drops or the
// stream is closed.
type Stream struct {
	ConnectionID string
	Events       <-chan domain.Event

	body io.Closer
}

// Close tears down the connection. The server prunes board subscriptions on
// its own once the stream is gone.
func (s *Stream) Close() error {
	return s.body.Close()
}

// OpenStream connects to the event stream and waits for the handshake event
// carrying the server-assigned connection ID.
func (c *Client) OpenStream(ctx context.Context) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "text/event-stream")

	// The ambient client timeout would kill a long-lived stream.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	name, payload, err := nextEvent(scanner)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("stream handshake: %w", err)
	}
	if name != "CONNECTED" {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected handshake event %q", name)
	}
	var handshake struct {
		ConnectionID string `json:"connectionId"`
	}
	if err := json.Unmarshal(payload, &handshake); err != nil || handshake.ConnectionID == "" {
		resp.Body.Close()
		return nil, fmt.Errorf("bad handshake payload %q", payload)
	}

	events := make(chan domain.Event, 16)
	s := &Stream{
		ConnectionID: handshake.ConnectionID,
		Events:       events,
		body:         resp.Body,
	}
	go func() {
		defer close(events)
		defer resp.Body.Close()
		for {
			name, payload, err := nextEvent(scanner)
			if err != nil {
				return
			}
			var decoded any
			if len(payload) > 0 {
				if err := json.Unmarshal(payload, &decoded); err != nil {
					continue
				}
			}
			select {
			case events <- domain.Event{Name: name, Payload: decoded}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return s, nil
}

// nextEvent reads one server-sent event, skipping comment lines such as
// keepalives. It returns the event name and the raw data payload.
func nextEvent(scanner *bufio.Scanner) (string, []byte, error) {
	var name string
	var data []byte
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if name != "" || len(data) > 0 {
				return name, data, nil
			}
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = append(data, []byte(strings.TrimPrefix(line, "data: "))...)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", nil, err
	}
	return "", nil, io.EOF
}
