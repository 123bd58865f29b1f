package tools

import "github.com/mokavoice/callbridge/pkg/realtime"

// Tool names as advertised to the provider.
const (
	SearchToolName      = "search_knowledge_base"
	ReservationToolName = "make_reservation"
)

// Schemas returns the function tools advertised on every session.
func Schemas() []realtime.ToolSchema {
	return []realtime.ToolSchema{
		{
			Name:        SearchToolName,
			Description: "Search the venue knowledge base for facts needed to answer the caller's question. Use it whenever the answer is not already in the conversation.",
			Parameters: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The caller's question, rephrased as a search query.",
				},
			},
			Required: []string{"query"},
		},
		{
			Name:        ReservationToolName,
			Description: "Record a reservation once the caller has confirmed every detail. Collect all required fields before calling.",
			Parameters: map[string]any{
				"reservation_type": map[string]any{
					"type":        "string",
					"description": "What is being reserved, for example room or table.",
				},
				"date": map[string]any{
					"type":        "string",
					"description": "Reservation date in YYYY-MM-DD form.",
				},
				"time": map[string]any{
					"type":        "string",
					"description": "Reservation time in HH:MM form.",
				},
				"customer_name": map[string]any{
					"type": "string",
				},
				"customer_surname": map[string]any{
					"type": "string",
				},
				"customer_email": map[string]any{
					"type": "string",
				},
				"notes": map[string]any{
					"type":        "string",
					"description": "Optional special requests.",
				},
			},
			Required: []string{
				"reservation_type", "date", "time",
				"customer_name", "customer_surname", "customer_email",
			},
		},
	}
}
