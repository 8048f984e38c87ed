package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Scenario is the scripted-intent file format the run command drives the
// environment from: a fixed roster of agents to register up front, followed
// by one TickIntents entry per micro tick the driver steps through.
type Scenario struct {
	Agents []AgentSpec   `json:"agents"`
	Ticks  []TickIntents `json:"ticks"`
}

// AgentSpec registers one account before the tick loop starts.
type AgentSpec struct {
	AgentID       int64   `json:"agent_id"`
	InitialCash   float64 `json:"initial_cash"`
	InitialShares int64   `json:"initial_shares"`
}

// TickIntents is every intent submitted during one micro tick, processed in
// list order before the clock steps.
type TickIntents struct {
	Intents []Intent `json:"intents"`
}

// Intent is one agent action. Type selects which of the other fields apply,
// mirroring the reference implementation's PlaceOrderIntent /
// CancelOrderIntent / CreateDepositIntent dataclasses.
type Intent struct {
	Type string `json:"type"`

	AgentID int64 `json:"agent_id"`

	// place_order
	Side      string   `json:"side,omitempty"`
	OrderType string   `json:"order_type,omitempty"`
	Quantity  int64    `json:"quantity,omitempty"`
	Price     *float64 `json:"price,omitempty"`

	// cancel_order
	OrderID int64 `json:"order_id,omitempty"`

	// create_deposit
	Term   int64   `json:"term,omitempty"`
	Amount float64 `json:"amount,omitempty"`
}

const (
	intentPlaceOrder    = "place_order"
	intentCancelOrder   = "cancel_order"
	intentCreateDeposit = "create_deposit"
)

// loadScenario reads and decodes a scenario file from path.
func loadScenario(path string) (Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("intent: open scenario: %w", err)
	}
	defer f.Close()

	var scenario Scenario
	if err := json.NewDecoder(f).Decode(&scenario); err != nil {
		return Scenario{}, fmt.Errorf("intent: decode scenario: %w", err)
	}
	return scenario, nil
}
