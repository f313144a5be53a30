package tutor

import (
	"context"
)

// Start opens a topic with diagnostic questions.
func (e *Engine) Start(ctx context.Context, topic string) Turn {
	var fallbacks []Stage
	text := e.generateOr(ctx, StageOpening, openingPrompt(topic), func() string {
		return fallbackOpening(topic)
	}, &fallbacks)

	return Turn{
		Reply: newOpening(text),
		Context: Context{
			Topic:             topic,
			UserLevel:         LevelBeginner,
			PreviousQuestions: []string{text},
			UserResponses:     []string{},
			CurrentFocus:      topic,
			Cycle:             &Cycle{Phase: PhaseOpening, Asked: 1},
		},
		Fallbacks: fallbacks,
	}
}

// Advance grades answer, gives feedback, and either asks the next question
// or, once MaxProbes questions have been asked, summarizes and starts a new
// cycle on the same topic. Advance never fails; model errors are replaced by
// canned text and listed in Turn.Fallbacks.
func (e *Engine) Advance(ctx context.Context, c Context, answer string) Turn {
	c = c.Clone()
	cycle := c.CycleState()
	var fallbacks []Stage

	assessment, err := e.Assess(ctx, answer, c.CurrentFocus)
	if err != nil {
		fallbacks = append(fallbacks, StageAssessment)
	}

	feedback, err := e.feedback(ctx, answer, c.CurrentFocus, assessment)
	if err != nil {
		e.logger.Warn("Model call failed, using fallback", "stage", StageFeedback, "error", err)
		fallbacks = append(fallbacks, StageFeedback)
		feedback = fallbackFeedback(assessment)
	}

	next := Context{
		Topic:             c.Topic,
		UserLevel:         assessment.Level,
		PreviousQuestions: c.PreviousQuestions,
		UserResponses:     append(c.UserResponses, answer),
		CurrentFocus:      assessment.Focus(c.CurrentFocus),
	}

	var reply Reply
	if cycle.Asked >= MaxProbes {
		block := e.generateOr(ctx, StageSummary, summaryPrompt(next, answer, cycle.Asked), func() string {
			return fallbackSummary(c.Topic)
		}, &fallbacks)
		reply = newWrapup(feedback, block)
		next.PreviousQuestions = []string{}
		next.Cycle = &Cycle{Phase: PhaseSummarized, Asked: 0}
	} else {
		block := e.generateOr(ctx, StageQuestion, questionPrompt(next, answer, cycle.Asked), fallbackQuestion, &fallbacks)
		reply = newProbe(feedback, block)
		next.PreviousQuestions = append(next.PreviousQuestions, reply.Text())
		next.Cycle = &Cycle{Phase: PhaseProbing, Asked: cycle.Asked + 1}
	}

	e.logger.Debug("Dialogue advanced",
		"topic", c.Topic,
		"kind", reply.Kind(),
		"asked", next.Cycle.Asked,
		"level", next.UserLevel,
		"fallbacks", len(fallbacks))

	return Turn{
		Reply:      reply,
		Context:    next,
		Assessment: &assessment,
		Fallbacks:  fallbacks,
	}
}
