package tutor

import (
	"fmt"
	"strings"

	"github.com/ashureev/socratic-tutor/internal/domain"
)

// Format headers double as markers that identify the prompt kind.
const (
	openingFormat    = "Output format (plain text):"
	gradingFormat    = "Respond with valid JSON only"
	feedbackFormat   = "Output Format (Feedback):"
	questionFormat   = "Output Format (SocraticQuestion):"
	summaryFormat    = "Output Format (SummaryAnswer):"
	transcriptFormat = "Please provide a structured summary that includes:"
)

func openingPrompt(topic string) string {
	return fmt.Sprintf(`You are a Socratic teacher starting a new learning session on %[1]q.
Open the session so that it:
1. Asks 2-3 diagnostic questions to find out what the student already knows
2. Explains that you will say whether each answer is correct and give the right answer
3. Sets clear expectations about how the session works

%[2]s
Welcome! Let's explore **%[1]s** together. I'll ask you some questions to understand what you already know, and I'll tell you whether your answers are correct, along with the right answers to help you learn.

**Q1:** <open-ended question that invites prior knowledge>
**Q2:** <question that probes deeper understanding or asks for an example>
**Q3:** <question about practical application or confidence>

**Hint:** <a short, encouraging nudge to get started, without giving answers>

Keep each question clear and focused. Encourage honest answers even when unsure.
Return plain text only, without markdown code fences.`, topic, openingFormat)
}

func gradingPrompt(answer, topic string) string {
	return fmt.Sprintf(`Analyze this student response about %s: %q

Assess the student's understanding:
1. Understanding level (beginner/intermediate/advanced)
2. Key misunderstandings or gaps (be specific)
3. Areas of strength (what they got right)
4. Accuracy percentage (0-100)
5. Whether the answer is fundamentally correct (true/false)

%s, with no markdown, code fences or explanation. Example:
{"level":"beginner","keyMisunderstandings":["specific error 1"],"strengths":["correct point 1"],"accuracyPercentage":65,"isCorrect":false}`,
		topic, answer, gradingFormat)
}

func feedbackPrompt(answer, topic string, a Assessment) string {
	right := joinOr(a.Strengths, "Let me help you identify the key concepts")
	improve := joinOr(a.KeyMisunderstandings, "Focus on understanding the core concepts better")

	return fmt.Sprintf(`You are a Socratic teacher giving feedback on a student's answer. You must:
1. Say exactly whether the answer is correct or incorrect
2. Give the correct answer clearly
3. Show the accuracy percentage
4. Explain what they got right and what they missed

Topic: %[1]s
Student's answer: %[2]q
Assessment:
- Level: %[3]s
- Accuracy: %[4]d%%
- Is correct: %[5]t
- Strengths: %[6]s
- Misunderstandings: %[7]s

%[8]s
Feedback: **Correctness:** %[9]s - You're about %[4]d%% accurate!

**What you got right:** %[10]s

**The correct answer:** <the complete, accurate answer about %[1]s>

**What to improve:** %[11]s

Be encouraging but honest. Always include the complete correct answer. Use simple language suited to a %[3]s student.`,
		topic, answer, a.Level, a.AccuracyPercentage, a.IsCorrect,
		joinOr(a.Strengths, "None identified"), joinOr(a.KeyMisunderstandings, "None identified"),
		feedbackFormat, a.Correctness(), right, improve)
}

func questionPrompt(c Context, answer string, asked int) string {
	return fmt.Sprintf(`You are a Socratic teacher. Guide the student to discover the answer themselves.
Ask a thoughtful question with a hint, but do NOT give the direct answer yet. Acknowledge what the student got right.

Context:
- Topic: %s
- User level: %s
- Questions asked so far: %d
- Student's latest response: %q
- Current focus: %s

%s
Question: <one focused question that builds on the student's response>
Hint: <a scaffolded hint that points toward the answer without revealing it>
FollowUp: <a question that checks their understanding after the hint>`,
		c.Topic, c.UserLevel, asked, answer, c.CurrentFocus, questionFormat)
}

func summaryPrompt(c Context, answer string, asked int) string {
	return fmt.Sprintf(`You are a Socratic teacher. %d questions have been asked, so it is time to summarize.

Context:
- Topic: %s
- User level: %s
- Student's latest response: %q
- Current focus: %s

%s
Summary: <a complete explanation that acknowledges the learning journey, gives the correct answers to the questions explored, explains the core concepts, and shows how the student's responses led there. Start with something encouraging like "Excellent work! Let's bring everything together.">

NextStep: <a related topic or deeper question to explore next>`,
		asked, c.Topic, c.UserLevel, answer, c.CurrentFocus, summaryFormat)
}

func transcriptPrompt(topic string, messages []domain.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Sender.Label()+": "+m.Content)
	}

	return fmt.Sprintf(`Create a comprehensive learning summary for the topic %q based on this tutoring conversation:

%s

%s
1. **Topic Overview**: what was learned
2. **Key Concepts**: main ideas discussed
3. **Learning Progress**: what the student discovered through questioning
4. **Important Insights**: key realizations
5. **Areas for Further Study**: next steps or related topics

Write it clearly, as a learning summary document.`,
		topic, strings.Join(lines, "\n\n"), transcriptFormat)
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}
