package real

import (
	"fmt"

	"github.com/fairyhunter13/lead-intel/internal/domain"
)

const jsonOnly = "Respond with ONLY a single valid JSON document. No markdown, no explanations, no reasoning."

var systemPrompts = map[domain.OperationKind]string{
	domain.OpLeadScoring: `You are a B2B sales analyst scoring inbound leads.
For every lead in the input return an object in "scored":
{"scored":[{"lead_id":string,"score":number 0-100,"grade":"A"|"B"|"C"|"D","reasoning":[string],"confidence":number 0-1}]}
Weigh seniority, budget, engagement and the intent expressed in notes.`,

	domain.OpConversationAnalysis: `You analyze sales conversations.
Return {"sentiment":{"overall":"positive"|"negative"|"neutral","score":number -1..1,"confidence":number 0-1},
"intent":{"primary_intent":string,"confidence":number 0-1,"urgency":"low"|"medium"|"high"},
"topics":{"main_topics":[string],"keywords":[string],"entities":{"people":[string],"organizations":[string]}},
"recommendations":[string]}`,

	domain.OpVoiceCommand: `You parse spoken CRM commands.
Return {"intent":one of "create_lead","log_call","create_task","schedule_meeting","send_email","update_lead","search_leads","unknown",
"entities":{string:string},"confidence":number 0-1}.
Entity keys: person, organization, email, amount, date, time, status, query.`,

	domain.OpSocialResearch: `You research a sales lead's public social presence from the handles and profile data given.
Return {"profiles":[{"platform":string,"handle":string,"url":string}],"interests":[string],"opportunities":[string]}.
Never invent follower counts.`,

	domain.OpPredictiveAnalytics: `You forecast the outcome of a sales opportunity from the lead and its interaction history.
Return {"conversion_probability":number 0-1,"expected_value":number >= 0,"time_to_close_days":number >= 0,"confidence":number 0-1}.`,
}

// systemPrompt returns the instructions for kind.
func systemPrompt(kind domain.OperationKind) (string, error) {
	p, ok := systemPrompts[kind]
	if !ok {
		return "", fmt.Errorf("%w: no prompt for operation %q", domain.ErrInvalidArgument, kind)
	}
	return p + "\n" + jsonOnly, nil
}
