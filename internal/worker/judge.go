package worker

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goaway "github.com/TwiN/go-away"
	"github.com/anthropics/anthropic-sdk-go"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/mbarkia/darna/internal/darna"
)

//go:embed system_prompt.txt
var systemPrompt string

//go:embed user_criteria.txt
var userCriteria string

// Type that holds a listing ID and whether it has been approved.
type judgements map[string]bool

type claudeJudgement struct {
	ListingID string `json:"listing_id"`
	Approved  bool   `json:"approved"`
}

// Use a schema to constrain the output
var (
	outputSchema = map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"listing_id": map[string]any{"type": "string"},
				"approved":   map[string]any{"type": "boolean"},
			},
			"required": []string{"listing_id", "approved"},
		},
	}
	outputFormat = anthropic.BetaJSONSchemaOutputFormat(outputSchema)
)

// judgeListing is the trimmed view of a listing the judge sees.
type judgeListing struct {
	ListingID    string   `json:"listing_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	City         string   `json:"city,omitempty"`
	Source       string   `json:"source"`
	DealType     string   `json:"deal_type,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`
}

func judgeView(doc darna.Doc) judgeListing {
	var v judgeListing
	v.ListingID, _ = doc["_id"].(string)
	v.Title, _ = doc["title"].(string)
	v.Description, _ = doc["description"].(string)
	v.City, _ = doc["city"].(string)
	v.Source, _ = doc["source"].(string)
	v.DealType, _ = doc["deal_type"].(string)
	v.PropertyType, _ = doc["property_type"].(string)
	if p, ok := doc["price"].(float64); ok {
		v.Price = &p
	}

	return v
}

// JudgeListings decides which pending listings go live.
//
// A profanity prescreen rejects the obvious garbage before it costs a
// model call. Whatever survives goes to Claude when a client is
// configured, and is auto-approved otherwise.
func (a activities) JudgeListings(ctx context.Context, pending []darna.Doc) (judgements, error) {
	l := activity.GetLogger(ctx)

	l.Info("judging listings", "count", len(pending))

	// If no listings to judge, return empty result
	if len(pending) == 0 {
		return nil, nil
	}

	j := make(judgements)

	var views []judgeListing
	for _, doc := range pending {
		view := judgeView(doc)
		if goaway.IsProfane(view.Title) || goaway.IsProfane(view.Description) {
			j[view.ListingID] = false
			continue
		}
		views = append(views, view)
	}

	// No model configured: auto-approve everything that survived the prescreen
	if a.claudeClient == nil {
		for _, view := range views {
			j[view.ListingID] = true
		}
		return j, nil
	}

	byts, _ := json.Marshal(views)
	userMessage := fmt.Sprintf(userCriteria, string(byts))

	// Call Claude to judge the listings
	claudeResp, err := a.claudeClient.Beta.Messages.New(ctx, anthropic.BetaMessageNewParams{
		Model: anthropic.ModelClaudeHaiku4_5,
		Betas: []anthropic.AnthropicBeta{
			"structured-outputs-2025-11-13",
		},
		MaxTokens:    1024,
		OutputFormat: outputFormat,
		System: []anthropic.BetaTextBlockParam{{
			Text: systemPrompt,
		}},
		Messages: []anthropic.BetaMessageParam{
			anthropic.NewBetaUserMessage(anthropic.NewBetaTextBlock(userMessage)),
		},
	})
	// Handle Anthropic rate limit errors
	var claudeErr *anthropic.Error
	if errors.As(err, &claudeErr) && claudeErr.StatusCode == http.StatusTooManyRequests {
		return nil, temporal.NewApplicationError("rate limit hit", errTypeRateLimit, err)
	}
	if err != nil {
		return nil, temporal.NewApplicationError("claude error", errTypeInternal, err)
	}

	var claudeJson strings.Builder
	for _, content := range claudeResp.Content {
		claudeJson.WriteString(content.Text)
	}
	var claudeJudgements []claudeJudgement
	if err := json.Unmarshal([]byte(claudeJson.String()), &claudeJudgements); err != nil {
		return nil, fmt.Errorf("error unmarshaling claude json: %s", err)
	}

	for _, judgement := range claudeJudgements {
		j[judgement.ListingID] = judgement.Approved
	}

	return j, nil
}
