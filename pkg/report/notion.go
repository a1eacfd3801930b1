package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const notionAPIVersion = "2022-06-28"

// NotionPublisher creates weekly report pages via the Notion API.
type NotionPublisher struct {
	client       *http.Client
	apiKey       string
	parentPageID string
	baseURL      string
}

// NewNotionPublisher creates a publisher targeting the given parent page.
func NewNotionPublisher(apiKey, parentPageID string) *NotionPublisher {
	return &NotionPublisher{
		client:       &http.Client{Timeout: 10 * time.Second},
		apiKey:       apiKey,
		parentPageID: parentPageID,
		baseURL:      "https://api.notion.com",
	}
}

// Publish creates a report page for the summary and returns its URL.
func (n *NotionPublisher) Publish(ctx context.Context, s *Summary) (string, error) {
	title := fmt.Sprintf("Weekly Demand Report - %s", s.WeekStart)

	children := []map[string]any{
		heading("Top Opportunities"),
	}
	for _, opp := range s.TopOpportunities {
		children = append(children, bullet(fmt.Sprintf("%s on %s — %s | %s", opp.Category, opp.Platform, opp.Verdict, opp.Insight)))
	}
	children = append(children, heading("Saturated Markets"))
	for _, opp := range s.SaturatedCategories {
		children = append(children, bullet(fmt.Sprintf("%s on %s — %s | %s", opp.Category, opp.Platform, opp.Verdict, opp.Insight)))
	}

	payload := map[string]any{
		"parent": map[string]any{"page_id": n.parentPageID},
		"properties": map[string]any{
			"title": map[string]any{
				"title": []map[string]any{
					{"text": map[string]any{"content": title}},
				},
			},
		},
		"children": children,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal notion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/v1/pages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create notion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Notion-Version", notionAPIVersion)

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("publish notion page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("notion API status %d: %s", resp.StatusCode, data)
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode notion response: %w", err)
	}
	return result.URL, nil
}

func heading(text string) map[string]any {
	return map[string]any{
		"object": "block",
		"type":   "heading_2",
		"heading_2": map[string]any{
			"rich_text": []map[string]any{
				{"type": "text", "text": map[string]any{"content": text}},
			},
		},
	}
}

func bullet(text string) map[string]any {
	return map[string]any{
		"object": "block",
		"type":   "bulleted_list_item",
		"bulleted_list_item": map[string]any{
			"rich_text": []map[string]any{
				{"type": "text", "text": map[string]any{"content": text}},
			},
		},
	}
}
