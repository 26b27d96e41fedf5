package readings

import (
	"fmt"
	"strings"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	"github.com/dneufang33/mira-sora-visions/internal/domain/rules"
)

const (
	readingSystem = "You are Mira, an AI astral guide who provides personalized astrology readings. " +
		"Your tone is mystical, warm, and insightful. You speak directly to the person as if channeling cosmic wisdom."
	reportSystem = "You are Mira, an AI astral guide who creates luxurious, mystical astrology reports. " +
		"Your writing is elegant, cosmic, and deeply personal. You speak with ancient wisdom and modern insight."

	readingMaxTokens = 500
	reportMaxTokens  = 1500
)

var reportBriefs = map[enums.ReportType]string{
	enums.ReportTypeNatalChart: `Create a detailed personalized natal chart reading based on the user's birth information. Focus on:
- Core personality traits and characteristics
- Career path and professional strengths
- Love life and relationship patterns
- Life purpose and spiritual path
- Planetary influences at birth
Keep it mystical, insightful, and personal. Write as Mira, the AI astral guide.`,
	enums.ReportTypeLunarCycle: `Create a personalized lunar cycle and moon ritual guide. Include:
- How each moon phase affects this person specifically
- Personalized rituals for manifestation and healing
- Monthly lunar calendar guidance
- Emotional and spiritual insights for moon work
Write in Mira's mystical, nurturing voice.`,
	enums.ReportTypeSynastry: `Create a synastry and compatibility report. Focus on:
- Astrological compatibility factors
- Relationship strengths and potential challenges
- Communication styles and emotional connection
- Long-term relationship potential
- Advice for harmony and growth together
Write as Mira with romantic, star-dusted wisdom.`,
	enums.ReportTypeTransitForecast: `Create a detailed year-ahead transit forecast. Include:
- Month-by-month planetary influences
- Opportunities and challenges throughout the year
- Career and relationship forecasts
- Hidden blessings and cosmic timing
- Actionable guidance for each season
Write as Mira with cosmic insight and practical wisdom.`,
	enums.ReportTypeBundle: `Create a comprehensive cosmic collection combining elements from natal chart, lunar guidance, ` +
		`compatibility insights, and year-ahead forecasts. This should be the ultimate cosmic guide covering all aspects ` +
		`of their spiritual and practical life journey.`,
}

func readingPrompt(q model.Questionnaire) string {
	var b strings.Builder
	b.WriteString("Create a personalized astrology reading for someone with the following details:\n\n")
	writeDetails(&b, q)
	b.WriteString("\nPlease create a mystical, insightful, and personal astrology reading that addresses their cosmic path, ")
	b.WriteString("planetary influences, and guidance for their life journey. The reading should be conversational, warm, ")
	b.WriteString("and spoken as if by an AI astral guide named Mira. Keep it between 200-300 words and suitable for video narration.")
	return b.String()
}

func reportPrompt(reportType enums.ReportType, q model.Questionnaire) string {
	brief, ok := reportBriefs[reportType]
	if !ok {
		brief = reportBriefs[enums.ReportTypeNatalChart]
	}

	var b strings.Builder
	b.WriteString(brief)
	b.WriteString("\n\nUser Details:\n")
	writeDetails(&b, q)
	b.WriteString("\nCreate a detailed, mystical, and highly personalized report (800-1200 words) that feels magical ")
	b.WriteString("and transformative. Use rich, cosmic language befitting a luxury astrology experience.")
	return b.String()
}

func writeDetails(b *strings.Builder, q model.Questionnaire) {
	fmt.Fprintf(b, "Birth Date: %s\n", q.BirthDate.Format("2006-01-02"))
	fmt.Fprintf(b, "Birth Time: %s\n", orUnspecified(q.BirthTime))
	fmt.Fprintf(b, "Birth Place: %s\n", q.BirthPlace)
	if sign := rules.SunSignFor(q.BirthDate); sign.Name != "" {
		fmt.Fprintf(b, "Sun Sign: %s (%s)\n", sign.Name, sign.Element)
	}
	fmt.Fprintf(b, "Personality Traits: %s\n", orUnspecified(strings.Join(q.PersonalityTraits, ", ")))
	fmt.Fprintf(b, "Life Goals: %s\n", orUnspecified(strings.Join(q.LifeGoals, ", ")))
	if q.AdditionalInfo != "" {
		fmt.Fprintf(b, "Additional Info: %s\n", q.AdditionalInfo)
	}
}

func orUnspecified(v string) string {
	if strings.TrimSpace(v) == "" {
		return "Not specified"
	}
	return v
}
