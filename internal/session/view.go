package session

import (
	"fmt"

	"github.com/robalobadob/hiddenpicture/internal/game"
)

// PointView is one row of the point list shown next to the canvas.
type PointView struct {
	Index   int    `json:"index"`
	Label   string `json:"label"`
	ID      string `json:"id"`
	Found   bool   `json:"found"`
	Preview string `json:"previewDataUrl,omitempty"`
	Note    string `json:"note"`
}

// View is the read model returned to clients.
type View struct {
	Loaded bool         `json:"loaded"`
	Canvas game.Size    `json:"canvas"`
	Region *game.Region `json:"drawRegion"`
	Points []PointView  `json:"points"`
	Total  int          `json:"total"`
	Found  int          `json:"found"`
	Status Status       `json:"status"`
}

// View renders the current point list and counters.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Loaded: s.loaded,
		Canvas: s.canvas.Size(),
		Points: make([]PointView, 0, len(s.points)),
		Total:  len(s.points),
		Status: s.status,
	}
	if s.region != nil {
		region := *s.region
		v.Region = &region
	}
	for i, pt := range s.points {
		note := "Not found yet"
		if pt.Found {
			note = "Found it!"
			v.Found++
		}
		v.Points = append(v.Points, PointView{
			Index:   i,
			Label:   fmt.Sprintf("Point %d", i+1),
			ID:      pt.ID,
			Found:   pt.Found,
			Preview: pt.Preview,
			Note:    note,
		})
	}
	return v
}
