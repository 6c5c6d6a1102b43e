package race

import "encoding/json"

// Roster maps player alias to characters typed.
type Roster map[string]int

type initEvent struct {
	Event   string `json:"event"`
	Text    string `json:"text"`
	You     string `json:"you"`
	Host    string `json:"host"`
	Started bool   `json:"started"`
	Players Roster `json:"players"`
}

type rosterEvent struct {
	Event   string `json:"event"`
	Player  string `json:"player,omitempty"`
	Host    string `json:"host"`
	Players Roster `json:"players"`
}

type updateEvent struct {
	Event      string `json:"event"`
	Player     string `json:"player"`
	CharsTyped int    `json:"charsTyped"`
	Players    Roster `json:"players"`
}

type finishEvent struct {
	Event  string  `json:"event"`
	Player string  `json:"player"`
	Time   float64 `json:"time"`
}

func mustEncode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// event structs hold only strings, ints and maps of them
		panic(err)
	}
	return b
}
