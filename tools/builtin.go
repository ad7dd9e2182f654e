package tools

import (
	"fmt"
	"strings"
)

// Built-in demo tools. These stand in for real integrations; they exist so
// the binary works end to end and the loop has real dispatchers to call.

// OrderSandwichTool places a (pretend) sandwich order
type OrderSandwichTool struct{}

func (t *OrderSandwichTool) Name() string { return "order_sandwich" }

func (t *OrderSandwichTool) Description() string {
	return "Place a sandwich order with the given filling for the current user"
}

func (t *OrderSandwichTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"filling": map[string]interface{}{
				"type":        "string",
				"description": "Sandwich filling, e.g. Turkey, Ham, Veggie",
			},
		},
		"required": []string{"filling"},
	}
}

func (t *OrderSandwichTool) Execute(appID, userID, channel string, args map[string]interface{}) (string, error) {
	filling := GetString(args, "filling")
	if filling == "" {
		return "", fmt.Errorf("filling is required")
	}
	return fmt.Sprintf("Ordered a %s sandwich for %s. It will arrive in about 20 minutes.", filling, userID), nil
}

// SendPhotoTool asks the client to render a photo via an out-of-band command
type SendPhotoTool struct{}

func (t *SendPhotoTool) Name() string { return "send_photo" }

func (t *SendPhotoTool) Description() string {
	return "Send the user a photo of the given subject"
}

func (t *SendPhotoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"subject": map[string]interface{}{
				"type":        "string",
				"description": "What the photo should show",
			},
		},
		"required": []string{"subject"},
	}
}

func (t *SendPhotoTool) Execute(appID, userID, channel string, args map[string]interface{}) (string, error) {
	subject := GetString(args, "subject")
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	// The model is expected to surface this to the client as a <photo ...>
	// command in its final answer.
	return fmt.Sprintf("photo available at https://photos.example.com/%s.jpg", strings.ReplaceAll(strings.ToLower(subject), " ", "-")), nil
}

// SearchFashionTool returns canned catalog hits
type SearchFashionTool struct{}

func (t *SearchFashionTool) Name() string { return "search_fashion" }

func (t *SearchFashionTool) Description() string {
	return "Search the fashion catalog for items matching a query"
}

func (t *SearchFashionTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Free-text item query",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of results",
			},
		},
		"required": []string{"query"},
	}
}

func (t *SearchFashionTool) Execute(appID, userID, channel string, args map[string]interface{}) (string, error) {
	query := GetString(args, "query")
	if query == "" {
		return "", fmt.Errorf("query is required")
	}
	limit := GetInt(args, "limit")
	if limit <= 0 || limit > 10 {
		limit = 3
	}
	items := make([]string, 0, limit)
	for i := 1; i <= limit; i++ {
		items = append(items, fmt.Sprintf("%s (style #%d)", query, i))
	}
	return "Catalog matches: " + strings.Join(items, ", "), nil
}
