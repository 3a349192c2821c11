package label

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// extractedDataSchema mirrors the schema the prompt demands from the model.
const extractedDataSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": [
    "document_type", "invoice_number", "invoice_date", "due_date",
    "vendor_name", "vendor_address", "bill_to", "ship_to",
    "purchase_order", "payment_terms", "currency",
    "subtotal", "tax_amount", "tax_rate", "total_amount",
    "line_items", "notes", "confidence", "source_snippets", "validation_warning"
  ],
  "properties": {
    "document_type": {"type": ["string", "null"], "enum": ["invoice", "receipt", "statement", null]},
    "invoice_number": {"type": ["string", "null"]},
    "invoice_date": {"type": ["string", "null"]},
    "due_date": {"type": ["string", "null"]},
    "vendor_name": {"type": ["string", "null"]},
    "vendor_address": {"type": ["string", "null"]},
    "bill_to": {"type": ["string", "null"]},
    "ship_to": {"type": ["string", "null"]},
    "purchase_order": {"type": ["string", "null"]},
    "payment_terms": {"type": ["string", "null"]},
    "currency": {"type": ["string", "null"]},
    "subtotal": {"type": ["number", "null"]},
    "tax_amount": {"type": ["number", "null"]},
    "tax_rate": {"type": ["number", "null"]},
    "total_amount": {"type": ["number", "null"]},
    "line_items": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "description": {"type": ["string", "null"]},
          "qty": {"type": ["number", "null"]},
          "unit_price": {"type": ["number", "null"]},
          "total": {"type": ["number", "null"]},
          "sku": {"type": ["string", "null"]}
        }
      }
    },
    "notes": {"type": ["string", "null"]},
    "confidence": {
      "type": "object",
      "properties": {
        "invoice_number": {"type": ["number", "null"]},
        "invoice_date": {"type": ["number", "null"]},
        "due_date": {"type": ["number", "null"]},
        "vendor_name": {"type": ["number", "null"]},
        "total_amount": {"type": ["number", "null"]}
      }
    },
    "source_snippets": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "field": {"type": "string"},
          "text": {"type": "string"}
        }
      }
    },
    "validation_warning": {"type": ["string", "null"]}
  }
}`

var compiledSchema = jsonschema.MustCompileString("extracted_data.json", extractedDataSchema)

// ValidateShape checks the parsed payload against the labeling schema and
// returns a short description of the mismatch, or "" when it conforms.
func ValidateShape(payload map[string]any) string {
	doc := map[string]any(payload)
	if err := compiledSchema.Validate(any(doc)); err != nil {
		msg := err.Error()
		if idx := strings.IndexByte(msg, '\n'); idx > 0 {
			msg = msg[:idx]
		}
		return msg
	}
	return ""
}
