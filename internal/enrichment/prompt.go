package enrichment

import (
	"fmt"
	"strings"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
)

// Prompt is a system/user pair for the synchronous completers.
type Prompt struct {
	System string
	User   string
}

const personaBrief = `Target persona, in priority order:
1. Executive assistants and office managers (assistante de direction, office manager)
2. Procurement and purchasing (achats, acheteur, procurement)
3. Facilities and general services (services généraux, facility manager)
4. Administration and operations managers
Do NOT return C-suite executives (CEO, CFO, founders, directeurs généraux): they do not
handle corporate gifting orders.`

const outputSchema = `Return ONLY one JSON object, no prose, with this shape:
{
  "contacts": [
    {
      "full_name": "string",
      "first_name": "string",
      "last_name": "string",
      "job_title": "string",
      "department": "string",
      "location": "string",
      "email_principal": "string",
      "email_alternatif": "string",
      "phone": "string",
      "linkedin_url": "string",
      "priority_score": 1-5
    }
  ],
  "company_info": {
    "domain": "string",
    "website": "string",
    "industry": "string",
    "employee_count": "string",
    "headquarters": "string"
  },
  "search_method": "string",
  "error": "string or null"
}
Use "N/A" for any value you could not verify. Never invent email addresses.`

func signalBrief(sig *model.Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", sig.CompanyName)
	if sig.SignalType != "" {
		fmt.Fprintf(&b, "Signal type: %s\n", sig.SignalType)
	}
	if detail := strings.TrimSpace(sig.EventDetail); detail != "" {
		fmt.Fprintf(&b, "Event: %s\n", detail)
	}
	return b.String()
}

// BuildAgentPrompt builds the research task for the external agent. The agent
// is asked to write its answer to a JSON file.
func BuildAgentPrompt(sig *model.Signal) string {
	return strings.Join([]string{
		"You are a B2B research agent for GOURRMET, a French corporate gifting company.",
		"Find 3 to 8 named decision-makers at the company below who would order corporate gifts.",
		"",
		signalBrief(sig),
		personaBrief,
		"",
		"Search LinkedIn, the company website and press coverage. Verify each person still holds the role.",
		"Save the final result as a file named contacts.json.",
		"",
		outputSchema,
	}, "\n")
}

// BuildCompletionPrompt builds the single-shot prompt for the synchronous
// fallback providers.
func BuildCompletionPrompt(sig *model.Signal) Prompt {
	return Prompt{
		System: "You are a B2B research assistant for GOURRMET, a French corporate gifting company. " +
			"You answer with a single JSON object and nothing else.\n\n" + outputSchema,
		User: strings.Join([]string{
			"Identify likely decision-makers for corporate gift orders at this company.",
			"",
			signalBrief(sig),
			personaBrief,
		}, "\n"),
	}
}
