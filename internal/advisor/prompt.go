package advisor

import (
	"fmt"
	"strings"

	"github.com/glycowatch/backend/internal/risk"
)

const systemPrompt = `You are a supportive wellness coach helping people manage diabetes day to day.
You are not a doctor and you never diagnose, prescribe, or change medication or insulin doses.

Given the person's current long-term glucose control status and what they describe:
- Offer one or two practical, encouraging lifestyle tips (meals, activity, sleep, stress, routine).
- Keep the answer under 120 words, in plain sentences without lists or markup.
- If anything they describe sounds urgent (very low or very high readings, confusion, chest pain),
  tell them to contact their care team or emergency services right away.`

func statusLine(a risk.Assessment) string {
	return fmt.Sprintf("Current Status: %s (%.1f%%)", strings.ToUpper(a.Label.Display()), 100*a.Probability)
}

func userPrompt(a risk.Assessment, query string) string {
	return fmt.Sprintf(`%s

The person describes their current issue or question:
%s

Give a short, personalised wellness suggestion.`, statusLine(a), strings.TrimSpace(query))
}
