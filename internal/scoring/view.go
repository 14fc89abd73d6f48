package scoring

import (
	"strconv"

	"github.com/hpungsan/cohesion/internal/request"
)

// Row pairs one input token with its similarity.
type Row struct {
	Item       string  `json:"item"`
	Similarity float64 `json:"similarity"`
	Display    string  `json:"display"`
}

// View is a scoring result laid out for display.
type View struct {
	Score        float64 `json:"score"`
	ScoreDisplay string  `json:"score_display"`
	Category     string  `json:"category"`
	ItemCount    int     `json:"item_count"`
	Method       string  `json:"method"`
	MethodLabel  string  `json:"method_label"`
	Rows         []Row   `json:"rows"`
	MeanDisplay  string  `json:"mean_display,omitempty"`
	Variance     string  `json:"variance_display,omitempty"`
}

// Project maps res onto req's token order, index by index. res must come from
// Client.Score (or otherwise satisfy the same length invariant).
func Project(req *request.AnalysisRequest, res *Result) View {
	rows := make([]Row, len(req.Items))
	for i, item := range req.Items {
		rows[i] = Row{
			Item:       item,
			Similarity: res.Similarities[i],
			Display:    format4(res.Similarities[i]),
		}
	}

	v := View{
		Score:        res.CohesionScore,
		ScoreDisplay: format4(res.CohesionScore),
		Category:     req.Category,
		ItemCount:    len(req.Items),
		Method:       string(req.Method),
		MethodLabel:  req.Method.Label(),
		Rows:         rows,
	}
	if res.MeanScore != nil {
		v.MeanDisplay = format4(*res.MeanScore)
	}
	if res.Variance != nil {
		v.Variance = format4(*res.Variance)
	}
	return v
}

func format4(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}
