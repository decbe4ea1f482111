package api

import (
	"time"

	"post-or-nah/backend/internal/analyzer"
	"post-or-nah/backend/internal/billing"
	"post-or-nah/backend/internal/store"
	"post-or-nah/backend/internal/verdict"
	"post-or-nah/backend/internal/vibe"
)

// AnalyzeRequest is the photo review payload.
type AnalyzeRequest struct {
	ImageBase64 string `json:"imageBase64"`
	Category    string `json:"category"`
	MIMEType    string `json:"mimeType"`
}

// AnalyzeResponse carries the verdict back to the app. Fallback and Degraded
// mark verdicts that did not come from a model reading of the photo.
type AnalyzeResponse struct {
	Verdict    string         `json:"verdict"`
	Suggestion string         `json:"suggestion"`
	Raw        any            `json:"raw"`
	Reasons    []string       `json:"reasons"`
	Score      *int           `json:"score,omitempty"`
	Vibe       string         `json:"vibe"`
	VibeLabel  string         `json:"vibe_label"`
	Fallback   bool           `json:"fallback"`
	Degraded   bool           `json:"degraded"`
	Source     string         `json:"source"`
	Model      string         `json:"model"`
	RequestID  string         `json:"request_id"`
	LatencyMs  int64          `json:"latency_ms"`
	Usage      *billing.Usage `json:"usage,omitempty"`
}

func newAnalyzeResponse(res analyzer.Result) AnalyzeResponse {
	reasons := res.Verdict.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return AnalyzeResponse{
		Verdict:    string(res.Verdict.Label),
		Suggestion: res.Verdict.Comment,
		Raw:        res.Raw,
		Reasons:    reasons,
		Score:      res.Verdict.Score,
		Vibe:       string(res.Vibe),
		VibeLabel:  res.Vibe.Label(),
		Fallback:   res.Verdict.Source == verdict.SourceFallback,
		Degraded:   res.Verdict.Degraded(),
		Source:     string(res.Verdict.Source),
		Model:      res.Model,
		RequestID:  res.RequestID,
		LatencyMs:  res.LatencyMs,
	}
}

// VibeDTO lists one supported vibe.
type VibeDTO struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Aliases []string `json:"aliases"`
}

func newVibeDTOs() []VibeDTO {
	out := make([]VibeDTO, 0, len(vibe.All))
	for _, key := range vibe.All {
		out = append(out, VibeDTO{Key: string(key), Label: key.Label(), Aliases: key.Aliases()})
	}
	return out
}

// UsageResponse reports the caller's quota and recent reviews.
type UsageResponse struct {
	billing.Usage
	Total  int64           `json:"total_reviews"`
	Recent []UsageEventDTO `json:"recent"`
}

// UsageEventDTO is one metered review.
type UsageEventDTO struct {
	RequestID string    `json:"request_id"`
	Vibe      string    `json:"vibe"`
	Verdict   string    `json:"verdict"`
	Source    string    `json:"source"`
	Charge    string    `json:"charge"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

func toUsageEventDTOs(rows []store.UsageEvent) []UsageEventDTO {
	out := make([]UsageEventDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, UsageEventDTO{
			RequestID: row.RequestID,
			Vibe:      row.Vibe,
			Verdict:   row.Label,
			Source:    row.Source,
			Charge:    row.Charge,
			LatencyMs: row.LatencyMs,
			CreatedAt: row.CreatedAt,
		})
	}
	return out
}

// GrantRequest tops up an account from the admin console.
type GrantRequest struct {
	UserID  string `json:"user_id"`
	Credits int    `json:"credits"`
	Reason  string `json:"reason"`
}

// CheckoutRequest picks the credit pack to buy.
type CheckoutRequest struct {
	PriceID string `json:"price_id" binding:"required"`
}
