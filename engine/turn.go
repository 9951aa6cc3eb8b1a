package engine

// Product is the item assembled by one pipeline turn. It feeds the next
// turn's refinement as the "previously selected product".
type Product struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	ImageCandidates []string `json:"image_candidates"`
	SelectedImage   string   `json:"selected_image,omitempty"`
}

// TurnRequest is one conversational search turn. History holds the most
// recent refined queries, newest first; the engine re-bounds it on output.
type TurnRequest struct {
	SessionID string   `json:"session_id,omitempty"`
	Query     string   `json:"query"`
	History   []string `json:"history,omitempty"`
	Current   *Product `json:"current,omitempty"`
}

// Image selection outcomes as reported on a turn result.
const (
	ImageOutcomePicked          = "picked"
	ImageOutcomeNoCandidates    = "no_candidates"
	ImageOutcomeNoConfidentPick = "no_confident_pick"
	ImageOutcomeNoItem          = "no_item"
)

// TurnResult is everything one turn produced. Product is nil when retrieval
// found no unseen catalog item; the conversation continues either way.
type TurnResult struct {
	TurnID        string   `json:"turn_id"`
	SessionID     string   `json:"session_id"`
	RefinedQuery  string   `json:"refined_query"`
	History       []string `json:"history"`
	Product       *Product `json:"product,omitempty"`
	RetrievalHits int      `json:"retrieval_hits"`
	ImageOutcome  string   `json:"image_outcome"`
}
