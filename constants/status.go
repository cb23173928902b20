package constants

// ExtractionStatus is the canonical terminal status of a pipeline invocation.
type ExtractionStatus string

// Stable values (store these exact strings in DB).
const (
	StatusSuccess   ExtractionStatus = "SUCCESS"   // every requested field parsed cleanly
	StatusPartial   ExtractionStatus = "PARTIAL"   // some fields recovered leniently or marked not found
	StatusFailed    ExtractionStatus = "FAILED"    // terminal failure at some stage
	StatusCancelled ExtractionStatus = "CANCELLED" // caller cancelled while waiting on inference
)

// NotFoundValue is the explicit value the model is instructed to emit
// (and the validator inserts) when a requested field is absent.
const NotFoundValue = "Not found"
