package constants

// ExtractionStatus is the explicit outcome marker stored on every record.
type ExtractionStatus string

// Stable values (store these exact strings).
const (
	StatusExtracted ExtractionStatus = "EXTRACTED" // all core fields present
	StatusPartial   ExtractionStatus = "PARTIAL"   // some core fields missing
	StatusFailed    ExtractionStatus = "FAILED"    // pipeline gave up; record holds what was salvaged
)

// Stage identifies where in the pipeline a request currently is, and where
// a terminal error originated.
type Stage string

const (
	StageExtracting  Stage = "EXTRACTING"
	StageInvoking    Stage = "INVOKING"
	StageParsing     Stage = "PARSING"
	StageNormalizing Stage = "NORMALIZING"
	StageStoring     Stage = "STORING"
	StageDone        Stage = "DONE"
)
