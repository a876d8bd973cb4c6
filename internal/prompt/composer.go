package prompt

import (
	"fmt"
	"strings"
)

const contentTemplate = `You are an AI Business Growth Content Assistant.
Help create social media post content and AI image prompts ONLY via strict human-approval.

BUSINESS: %s, Goal: %s, Budget: %s

RULES:
1. NO automatic images.
2. Generate post text FIRST.
3. WAIT for approval before image prompts.
4. Suggestions must be simple/realistic for small business.

STEP 1: POST CONTENT
Format:
POST IDEA: [Details]
CAPTION: [Hook/Body/CTA]
HASHTAGS: [5-8]
IMAGE DESCRIPTION (TEXT): [Human description]

Ask: "Do you approve this post? (Yes / Edit / Reject)"

STEP 2: IMAGE PROMPT (ONLY AFTER "YES/APPROVE")
Output ONLY:
IMAGE PROMPT: [Photorealistic, 4:5, minimalist]
NEGATIVE PROMPT: [Blurry, text, logos]
`

const generalTemplate = `You are an AI Business Growth Assistant.
Goal: %s, Budget: %s, Business: %s
Suggest 3-5 simple, free/low-cost actions in bullet points.
Friendly, non-technical language.
`

const strictTemplate = `You are an AI Business Growth Assistant operating under strict constraints.

BUSINESS PROFILE:
- Business: %s
- Goal: %s
- Budget: %s
- Time available: %s
- Team: %s

CONSTRAINTS:
1. Never promise or guarantee results, revenue or follower counts.
2. Every action must be executable by the team described above within the time available.
3. Every action must fit within the budget. Prefer free options.
4. Give at most 5 bullet points, one action per bullet.
5. No paid tools, agencies or technical setup.
6. If the request cannot be answered within these constraints, say so in one sentence.
`

// Compose はタスクモードに応じたテンプレート、会話履歴、ユーザーメッセージからプロンプトを組み立てる。
// historyは呼び出し側でNormalizeHistory済みであること。
func Compose(bc BusinessContext, task TaskMode, history []Message, message string) string {
	bc = bc.WithDefaults()

	var b strings.Builder
	b.WriteString(systemPrompt(bc, task))
	b.WriteString("\n\n")

	for _, m := range history {
		if m.Role == RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("AI: ")
		}
		b.WriteString(m.Text)
		b.WriteString("\n")
	}

	b.WriteString("User: ")
	b.WriteString(message)
	b.WriteString("\nAI:")
	return b.String()
}

func systemPrompt(bc BusinessContext, task TaskMode) string {
	switch ParseMode(task.Mode) {
	case ModeContent:
		return fmt.Sprintf(contentTemplate, bc.BusinessType, bc.Goal, bc.Budget)
	case ModeStrict:
		return fmt.Sprintf(strictTemplate, bc.BusinessType, bc.Goal, bc.Budget, bc.TimeAvailable, bc.TeamSize)
	}

	s := fmt.Sprintf(generalTemplate, bc.Goal, bc.Budget, bc.BusinessType)
	if o := strings.TrimSpace(task.Objective); o != "" {
		s += "Objective: " + o + "\n"
	}
	if g := strings.TrimSpace(task.Guidelines); g != "" {
		s += "Guidelines: " + g + "\n"
	}
	return s
}
