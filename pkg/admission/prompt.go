package admission

import (
	"fmt"
	"strings"

	"github.com/mokavoice/callbridge/internal/tenant"
)

// SynthesizePrompt builds the session instructions from the tenant's
// configuration. The prompt pins the assistant to this venue's facts:
// anything not covered by the knowledge base must go through the
// search tool, never be invented.
func SynthesizePrompt(p tenant.Profile) string {
	name := p.Name
	if name == "" {
		name = "the venue"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the telephone assistant for %s.\n", name)
	b.WriteString("You are speaking with a caller on a live phone call. Keep answers short, warm and natural, one or two sentences.\n")
	b.WriteString("Use the search_knowledge_base tool to answer any question about the venue. Never invent facts; if the tool finds nothing, say you do not have that information.\n")
	b.WriteString("Use the make_reservation tool only after collecting and confirming every required detail with the caller.\n")

	if p.Greeting != "" {
		fmt.Fprintf(&b, "Greeting to open with: %s\n", p.Greeting)
	}
	if p.Instructions != "" {
		b.WriteString(p.Instructions)
		b.WriteString("\n")
	}
	return b.String()
}
