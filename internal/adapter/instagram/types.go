package instagram

import (
	"bytes"
	"encoding/json"
)

// flexID tolerates the API's habit of sending ids as numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func (f flexID) String() string { return string(f) }

type apiUser struct {
	PK       flexID `json:"pk"`
	Username string `json:"username"`
}

type currentUserResponse struct {
	User apiUser `json:"user"`
}

type mediaItem struct {
	PK   flexID  `json:"pk"`
	Code string  `json:"code"`
	User apiUser `json:"user"`
}

type feedResponse struct {
	Items         []mediaItem `json:"items"`
	MoreAvailable bool        `json:"more_available"`
	NextMaxID     flexID      `json:"next_max_id"`
}

type apiComment struct {
	PK   flexID  `json:"pk"`
	Text string  `json:"text"`
	User apiUser `json:"user"`
}

type commentsResponse struct {
	Comments []apiComment `json:"comments"`
}
