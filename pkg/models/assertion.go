package models

import "time"

// Prediction is one member's forecast on an assertion: a yes/no position
// weighted by a confidence in [0,1].
type Prediction struct {
	Confidence float64 `json:"confidence"`
	Forecast   bool    `json:"forecast"`
}

// Assertion is a yes/no question posed to a chat. Members forecast until the
// casting deadline; after the validation date they vote on the outcome, and a
// member majority completes the assertion and scores every forecaster.
type Assertion struct {
	ID                      int64                 `json:"id"`
	AuthorID                string                `json:"authorUserId"`
	ChatID                  int64                 `json:"chatId"`
	Text                    string                `json:"text"`
	Predictions             map[string]Prediction `json:"predictions"`
	Votes                   map[string]bool       `json:"votes"`
	ValidationDate          time.Time             `json:"validationDate"`
	CastingForecastDeadline time.Time             `json:"castingForecastDeadline"`
	CreatedAt               time.Time             `json:"createdAt"`
	Completed               bool                  `json:"completed"`
	FinalAnswer             bool                  `json:"finalAnswer"`
}

// CastingClosed reports whether the forecast window has ended at now.
func (a *Assertion) CastingClosed(now time.Time) bool {
	return !now.Before(a.CastingForecastDeadline)
}

// VotingOpen reports whether the validation window has started at now.
func (a *Assertion) VotingOpen(now time.Time) bool {
	return !now.Before(a.ValidationDate)
}

// AssertionPayload is the wire form of an assertion: the record fields plus
// counts and the caller-specific participation flags. Individual predictions
// and votes of other members are never exposed.
type AssertionPayload struct {
	Type                    string  `json:"type"` // always EntryAssertion
	AssertionID             int64   `json:"assertionId"`
	ChatID                  string  `json:"chatId"`
	Author                  Profile `json:"author"`
	Text                    string  `json:"text"`
	CreatedAt               string  `json:"createdAt"`
	CastingForecastDeadline string  `json:"castingForecastDeadline"`
	ValidationDate          string  `json:"validationDate"`
	Completed               bool    `json:"completed"`
	FinalAnswer             bool    `json:"finalAnswer"`
	Predictions             int     `json:"predictions"` // count only
	Votes                   int     `json:"votes"`       // count only
	DidPredict              bool    `json:"didPredict"`  // whether the receiving user predicted
	DidVote                 bool    `json:"didVote"`     // whether the receiving user voted
}
