// Package tools executes provider-requested function calls: knowledge
// lookups and reservation writes. Invocations are deduplicated by their
// provider reference and run off the session loop so audio keeps
// flowing while a tool is in flight.
package tools

import (
	"encoding/json"
	"fmt"
)

// Args is a parsed tool argument payload.
type Args interface {
	isArgs()
}

// SearchArgs are the arguments of a knowledge-base lookup.
type SearchArgs struct {
	Query string `json:"query"`
}

// ReservationArgs are the arguments of a reservation write. All fields
// except Notes are required.
type ReservationArgs struct {
	Type            string `json:"reservation_type"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	CustomerName    string `json:"customer_name"`
	CustomerSurname string `json:"customer_surname"`
	CustomerEmail   string `json:"customer_email"`
	Notes           string `json:"notes"`
}

// Missing lists the required fields left empty, in schema order.
func (r ReservationArgs) Missing() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"reservation_type", r.Type},
		{"date", r.Date},
		{"time", r.Time},
		{"customer_name", r.CustomerName},
		{"customer_surname", r.CustomerSurname},
		{"customer_email", r.CustomerEmail},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// UnknownArgs marks a tool name this service does not implement.
type UnknownArgs struct {
	Name string
}

func (SearchArgs) isArgs()      {}
func (ReservationArgs) isArgs() {}
func (UnknownArgs) isArgs()     {}

// ParseArgs decodes the raw argument JSON for the named tool.
func ParseArgs(name, raw string) (Args, error) {
	switch name {
	case SearchToolName:
		var a SearchArgs
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("tools: %s arguments: %w", name, err)
		}
		return a, nil

	case ReservationToolName:
		var a ReservationArgs
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("tools: %s arguments: %w", name, err)
		}
		return a, nil
	}

	return UnknownArgs{Name: name}, nil
}
