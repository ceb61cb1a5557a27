package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/agarciaarin-ops/SCUMM-AI/pkg/chat"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/state"
)

// ErrorResponse matches the API's error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func decodeStateResponse(resp *http.Response, wantStatus int, what string) (*state.GameState, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to %s: %s", what, errorResp.Error)
	}

	var gs state.GameState
	if err := json.Unmarshal(body, &gs); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	return &gs, nil
}

func startSession(client *http.Client, baseURL string, settings state.Settings) (*state.GameState, error) {
	jsonData, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}

	resp, err := client.Post(
		baseURL+"/v1/session",
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	return decodeStateResponse(resp, http.StatusCreated, "start session")
}

func sendAction(client *http.Client, baseURL string, sessionID uuid.UUID, action string) (*state.GameState, error) {
	jsonData, err := json.Marshal(chat.ActionRequest{Action: action})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action: %w", err)
	}

	resp, err := client.Post(
		fmt.Sprintf("%s/v1/session/%s/action", baseURL, sessionID),
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	return decodeStateResponse(resp, http.StatusOK, "submit action")
}

func getSession(client *http.Client, baseURL string, sessionID uuid.UUID) (*state.GameState, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/session/%s", baseURL, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	return decodeStateResponse(resp, http.StatusOK, "get session")
}
