package label

import "fmt"

const promptTemplate = `You are a world-class financial document parser. Read the DOCUMENT TEXT and output ONLY JSON conforming to the SCHEMA. Be precise and avoid hallucinations.

Rules:
- Output must be valid JSON. No markdown, no prose.
- Use ISO 8601 for dates (YYYY-MM-DD when day known, otherwise YYYY-MM).
- Use numbers for all monetary/quantity fields (not strings).
- currency must be a 3-letter code (e.g., USD, EUR, GBP) if present.
- Do not infer values you cannot justify; use null when uncertain or missing.
- Trim whitespace and normalize strings.
- If totals are present, ensure: subtotal + tax_amount == total_amount (when all are present). If inconsistent, keep raw values and set a field validation_warning with a brief note.
- Include confidence (0..1) per top-level field and an array of source_snippets specifying supporting text segments.

SCHEMA (all keys required, use null when missing):
{
  "document_type": "invoice" | "receipt" | "statement" | null,
  "invoice_number": string | null,
  "invoice_date": string | null,
  "due_date": string | null,
  "vendor_name": string | null,
  "vendor_address": string | null,
  "bill_to": string | null,
  "ship_to": string | null,
  "purchase_order": string | null,
  "payment_terms": string | null,
  "currency": string | null,
  "subtotal": number | null,
  "tax_amount": number | null,
  "tax_rate": number | null,
  "total_amount": number | null,
  "line_items": [
    {
      "description": string | null,
      "qty": number | null,
      "unit_price": number | null,
      "total": number | null,
      "sku": string | null
    }
  ],
  "notes": string | null,
  "confidence": {
    "invoice_number": number | null,
    "invoice_date": number | null,
    "due_date": number | null,
    "vendor_name": number | null,
    "total_amount": number | null
  },
  "source_snippets": [
    { "field": string, "text": string }
  ],
  "validation_warning": string | null
}

Extraction strategy:
1) Identify document type keywords (invoice, receipt, statement) and set document_type.
2) Locate obvious fields: invoice number, dates, vendor, totals, currency symbol/code.
3) Parse line items table when present (rows with qty, unit price, amount). Convert to numbers.
4) Prefer explicit totals on the page over computed values. If mismatch, keep both raw values and set validation_warning.
5) Keep values faithful to the text; do not create values that don't exist.

DOCUMENT TEXT:
"""%s"""`

// BuildPrompt renders the labeling prompt for the given document text.
func BuildPrompt(rawText string) string {
	return fmt.Sprintf(promptTemplate, rawText)
}
