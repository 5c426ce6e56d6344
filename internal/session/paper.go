package session

import (
	"errors"

	"github.com/guardianview/guardian-backend/internal/model"
)

// ErrUnknownQuestion is returned when an answer or flag references a
// question ID that is not part of the paper.
var ErrUnknownQuestion = errors.New("unknown question id")

// Paper holds the static ordered question list together with the
// candidate's answer and flag state. Answers are last-write-wins, flags are
// independent of answers, and navigation is clamped to the paper bounds.
//
// Paper is not safe for concurrent use on its own; the owning Controller
// serializes access.
type Paper struct {
	questions []model.Question
	answers   map[string]string
	flags     map[string]bool
	index     int
	frozen    bool
}

// NewPaper creates a Paper over the given ordered question list.
func NewPaper(questions []model.Question) *Paper {
	return &Paper{
		questions: questions,
		answers:   make(map[string]string, len(questions)),
		flags:     make(map[string]bool, len(questions)),
	}
}

// Questions returns the static question list.
func (p *Paper) Questions() []model.Question {
	return p.questions
}

// RecordAnswer overwrites any prior answer for the question. No history is
// kept. It is a no-op once the paper is frozen.
func (p *Paper) RecordAnswer(questionID, optionID string) error {
	if p.frozen {
		return nil
	}
	q := p.find(questionID)
	if q == nil {
		return ErrUnknownQuestion
	}
	for _, opt := range q.Options {
		if opt.ID == optionID {
			p.answers[questionID] = optionID
			return nil
		}
	}
	return errors.New("option does not belong to question")
}

// ToggleFlag flips the marked-for-review flag of a question, independent of
// its answer state. It is a no-op once the paper is frozen.
func (p *Paper) ToggleFlag(questionID string) error {
	if p.frozen {
		return nil
	}
	if p.find(questionID) == nil {
		return ErrUnknownQuestion
	}
	p.flags[questionID] = !p.flags[questionID]
	return nil
}

// Answer returns the selected option for a question, or "" if unanswered.
func (p *Paper) Answer(questionID string) string {
	return p.answers[questionID]
}

// Flagged reports whether a question is marked for review.
func (p *Paper) Flagged(questionID string) bool {
	return p.flags[questionID]
}

// IsComplete reports whether every question has a non-empty answer.
func (p *Paper) IsComplete() bool {
	for _, q := range p.questions {
		if p.answers[q.ID] == "" {
			return false
		}
	}
	return true
}

// AnsweredCount returns the number of questions with a recorded answer.
func (p *Paper) AnsweredCount() int {
	n := 0
	for _, q := range p.questions {
		if p.answers[q.ID] != "" {
			n++
		}
	}
	return n
}

// GoTo moves the current position to index, clamped to [0, len-1].
// There is no wraparound. With no questions the position stays at 0.
func (p *Paper) GoTo(index int) int {
	if p.frozen || len(p.questions) == 0 {
		return p.index
	}
	if index < 0 {
		index = 0
	}
	if max := len(p.questions) - 1; index > max {
		index = max
	}
	p.index = index
	return p.index
}

// Index returns the current question position.
func (p *Paper) Index() int {
	return p.index
}

// Freeze makes all answer, flag and navigation state immutable.
func (p *Paper) Freeze() {
	p.frozen = true
}

func (p *Paper) find(questionID string) *model.Question {
	for i := range p.questions {
		if p.questions[i].ID == questionID {
			return &p.questions[i]
		}
	}
	return nil
}

// DefaultPaper returns the built-in sample paper. The questions are static
// and defined at load time.
func DefaultPaper() *Paper {
	return NewPaper([]model.Question{
		{
			ID:     "q1",
			Prompt: "A train moving at a constant speed of 72 km/h crosses a pole in 9 seconds and a platform in 29 seconds. What is the length of the platform?",
			Options: []model.Option{
				{ID: "q1o1", Text: "300 meters"},
				{ID: "q1o2", Text: "400 meters"},
				{ID: "q1o3", Text: "500 meters"},
				{ID: "q1o4", Text: "600 meters"},
			},
		},
		{
			ID:     "q2",
			Prompt: "What is the output of the following C code snippet?\n\n#include <stdio.h>\nint main() {\n    int i = 5;\n    printf(\"%d %d %d\", i++, i, ++i);\n    return 0;\n}",
			Options: []model.Option{
				{ID: "q2o1", Text: "5 6 7"},
				{ID: "q2o2", Text: "7 6 5"},
				{ID: "q2o3", Text: "6 6 7"},
				{ID: "q2o4", Text: "Undefined behavior"},
			},
		},
		{
			ID:     "q3",
			Prompt: "Which law of thermodynamics states that the entropy of any isolated system always increases?",
			Options: []model.Option{
				{ID: "q3o1", Text: "First Law of Thermodynamics"},
				{ID: "q3o2", Text: "Second Law of Thermodynamics"},
				{ID: "q3o3", Text: "Third Law of Thermodynamics"},
				{ID: "q3o4", Text: "Zeroth Law of Thermodynamics"},
			},
		},
		{
			ID:     "q4",
			Prompt: "In astrophysics, what is the Chandrasekhar Limit?",
			Options: []model.Option{
				{ID: "q4o1", Text: "The maximum speed a celestial body can achieve."},
				{ID: "q4o2", Text: "The minimum temperature for nuclear fusion to start in a star."},
				{ID: "q4o3", Text: "The maximum mass of a stable white dwarf star."},
				{ID: "q4o4", Text: "The radius of a black hole's event horizon."},
			},
		},
		{
			ID:     "q5",
			Prompt: "Identify the logical fallacy in the following statement: \"You can't trust John's opinion on economics because he has never run a business.\"",
			Options: []model.Option{
				{ID: "q5o1", Text: "Straw Man"},
				{ID: "q5o2", Text: "Slippery Slope"},
				{ID: "q5o3", Text: "Ad Hominem"},
				{ID: "q5o4", Text: "Appeal to Authority"},
			},
		},
	})
}
