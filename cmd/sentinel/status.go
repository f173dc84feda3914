package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print server health and node/edge counts",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}

	health, err := fetchJSON(client, serverURL+"/health")
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	fmt.Printf("health: %v\n", health)

	counts, err := fetchJSON(client, serverURL+"/stats")
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	fmt.Printf("stats:  %v\n", counts)

	return nil
}

func fetchJSON(client *http.Client, url string) (map[string]any, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s returned %d: %v", url, resp.StatusCode, body)
	}
	return body, nil
}
