package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
)

var (
	server      string
	port        int
	destination string

	defaultServer = "localhost"
	defaultPort   = 50080

	envVarServer = "WAYFIND_SERVER"
	envVarPort   = "WAYFIND_PORT"
)

func main() {
	if envServer := os.Getenv(envVarServer); envServer != "" {
		defaultServer = envServer
	}
	if envPort := os.Getenv(envVarPort); envPort != "" {
		var err error
		if defaultPort, err = strconv.Atoi(envPort); err != nil {
			log.Panic(err)
		}
	}

	flag.StringVar(&server, "server", defaultServer, fmt.Sprintf("The hostname or address of the wayfind service [%s]", envVarServer))
	flag.IntVar(&port, "port", defaultPort, fmt.Sprintf("The port of the wayfind service [%s]", envVarPort))
	flag.StringVar(&destination, "destination", "", "Where to navigate to, as a free-form address")
	flag.Parse()

	if destination == "" {
		log.Fatal("a -destination is required")
	}

	base := fmt.Sprintf("http://%s:%d", server, port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := startSession(ctx, base, destination)
	if err != nil {
		log.Fatal(err)
	}

	err = watch(ctx, base, id, func(event, data string) {
		fmt.Printf("%s: %s\n", event, data)
	})
	if err != nil {
		log.Fatal(err)
	}
}

func startSession(ctx context.Context, base, destination string) (string, error) {
	body, err := json.Marshal(map[string]string{"destination": destination})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("wayfind refused the session: %s", res.Status)
	}

	var session struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&session); err != nil {
		return "", err
	}

	return session.ID, nil
}

func watch(ctx context.Context, base, id string, onEvent func(event, data string)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/sessions/"+id+"/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("wayfind refused the subscription: %s", res.Status)
	}

	var event string
	var terminal bool
	scanner := bufio.NewScanner(res.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			if event == "arrived" || event == "ended" {
				terminal = true
			}
		case strings.HasPrefix(line, "data:"):
			onEvent(event, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// The server closes the stream once the session terminates.
	if terminal {
		return nil
	}

	return fmt.Errorf("wayfind closed the subscription")
}
