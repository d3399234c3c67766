package model

type CreateRequestBody struct {
	Strategy string `json:"strategy"`
}

type InputRequestBody struct {
	Command string `json:"command"`
}

// MeasureResponse carries one measure of a served composition. Pending is
// how many more measures are already composed.
type MeasureResponse struct {
	ID            string   `json:"id"`
	CompositionID string   `json:"composition_id"`
	Strategy      string   `json:"strategy"`
	Pending       int      `json:"pending"`
	Measure       *Measure `json:"measure"`
}

type FinishResponse struct {
	ID          string         `json:"id"`
	Strategy    string         `json:"strategy"`
	Measures    int            `json:"measures"`
	Played      int            `json:"played"`
	Sections    int            `json:"sections"`
	Modulations int            `json:"modulations"`
	Chords      map[string]int `json:"chords"`
	Archived    bool           `json:"archived"`
}

// StreamMessage is one websocket frame of the measure stream. Exactly one
// of Measure and Error is set.
type StreamMessage struct {
	Index   int      `json:"index"`
	Measure *Measure `json:"measure,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"detail"`
}
