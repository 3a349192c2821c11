package label

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"finparse-backend/internal/shared/telemetry"
)

const totalsTolerance = 0.01

// Labeler turns raw document text into the structured extraction payload.
// A nil Client means labeling is unconfigured; the labeler then degrades
// to an all-null payload carrying a validation warning instead of failing.
type Labeler struct {
	Client ChatClient
}

// Label produces the structured payload for rawText. Model misbehavior
// (non-JSON output, empty content, schema drift) degrades to a diagnostic
// payload; only transport and provider failures return *LabelingError.
func (l *Labeler) Label(ctx context.Context, rawText string) (map[string]any, error) {
	telemetry.Info("label.start", map[string]any{"text_chars": len(rawText)})

	if l.Client == nil {
		telemetry.Warn("label.unconfigured", nil)
		return unconfiguredPayload(rawText), nil
	}

	content, err := l.Client.Complete(ctx, BuildPrompt(rawText))
	if err != nil {
		return nil, &LabelingError{Err: err}
	}

	if strings.TrimSpace(content) == "" {
		telemetry.Warn("label.empty_response", nil)
		return map[string]any{
			"rawOutput": "",
			"rawText":   rawText,
			"error":     "Empty response from AI",
		}, nil
	}

	jsonText := stripFences(content)
	payload := map[string]any{}
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		telemetry.Warn("label.invalid_json", map[string]any{"error": err.Error()})
		return map[string]any{
			"rawOutput":  content,
			"rawText":    rawText,
			"parseError": err.Error(),
		}, nil
	}

	if mismatch := ValidateShape(payload); mismatch != "" {
		telemetry.Warn("label.schema_mismatch", map[string]any{"mismatch": mismatch})
		appendWarning(payload, "schema mismatch: "+mismatch)
	}
	checkTotals(payload)

	telemetry.Info("label.parsed", nil)
	return payload, nil
}

// checkTotals cross-checks subtotal + tax_amount against total_amount
// and records a validation warning on inconsistency.
func checkTotals(payload map[string]any) {
	subtotal, okSub := asNumber(payload["subtotal"])
	tax, okTax := asNumber(payload["tax_amount"])
	total, okTotal := asNumber(payload["total_amount"])
	if !okSub || !okTax || !okTotal {
		return
	}
	if math.Abs(subtotal+tax-total) <= totalsTolerance {
		return
	}
	appendWarning(payload, "subtotal + tax_amount does not equal total_amount")
}

func appendWarning(payload map[string]any, warning string) {
	if existing, ok := payload["validation_warning"].(string); ok && strings.TrimSpace(existing) != "" {
		payload["validation_warning"] = existing + "; " + warning
		return
	}
	payload["validation_warning"] = warning
}

func asNumber(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
	} else {
		return trimmed
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func unconfiguredPayload(rawText string) map[string]any {
	payload := map[string]any{
		"document_type":      nil,
		"invoice_number":     nil,
		"invoice_date":       nil,
		"due_date":           nil,
		"vendor_name":        nil,
		"vendor_address":     nil,
		"bill_to":            nil,
		"ship_to":            nil,
		"purchase_order":     nil,
		"payment_terms":      nil,
		"currency":           nil,
		"subtotal":           nil,
		"tax_amount":         nil,
		"tax_rate":           nil,
		"total_amount":       nil,
		"line_items":         []any{},
		"notes":              nil,
		"source_snippets":    []any{},
		"validation_warning": "labeling API key not set; returning empty structure",
		"rawText":            rawText,
	}
	payload["confidence"] = map[string]any{
		"invoice_number": nil,
		"invoice_date":   nil,
		"due_date":       nil,
		"vendor_name":    nil,
		"total_amount":   nil,
	}
	return payload
}
