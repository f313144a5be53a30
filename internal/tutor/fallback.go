package tutor

import "fmt"

// Canned content used when a model call fails, so the conversation keeps
// going in a degraded form.

func fallbackOpening(topic string) string {
	return fmt.Sprintf("Welcome! Let's explore **%[1]s** together. I'll help you learn by asking questions and giving you feedback on your answers.\n\n"+
		"**Q1:** What comes to mind when you think about %[1]s?\n"+
		"**Q2:** Can you give me an example related to %[1]s?\n"+
		"**Q3:** How confident do you feel about your current understanding?\n\n"+
		"**Hint:** Share your honest thoughts - there are no wrong answers at this stage!", topic)
}

func fallbackFeedback(a Assessment) string {
	return fmt.Sprintf("**Correctness:** %s - You're about %d%% accurate! Let me help you understand this better.",
		a.Correctness(), a.AccuracyPercentage)
}

func fallbackQuestion() string {
	return "Question: What do you think might be the key concept we should explore here?\n" +
		"Hint: Think about the fundamental principles involved.\n" +
		"FollowUp: Can you explain your reasoning?"
}

func fallbackSummary(topic string) string {
	return fmt.Sprintf("Summary: Great work exploring %[1]s! You've made excellent progress in understanding the key concepts. "+
		"Let me provide you with the complete picture and correct answers to help solidify your learning.\n\n"+
		"NextStep: What aspect of %[1]s would you like to explore further?", topic)
}
