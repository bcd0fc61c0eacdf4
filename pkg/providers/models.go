package providers

import (
	"encoding/json"
	"fmt"
)

// modelList is the body of a vendor model listing response. OpenAI, Anthropic
// and OpenAI-compatible local servers all use this shape.
type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ParseModelList extracts model ids, in vendor order, from a model listing body.
func ParseModelList(provider string, raw []byte) ([]string, error) {
	var list modelList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, &ParseError{
			Provider:    provider,
			RawResponse: string(raw),
			Cause:       fmt.Errorf("failed to decode model list: %w", err),
		}
	}
	ids := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
