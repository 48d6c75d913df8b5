package failure

import "strings"

// Kind names one entry of the pipeline failure taxonomy. Kinds are the shared
// vocabulary between persisted error details, metric labels and logs.
type Kind string

const (
	// KindValidation: bad inbound message, rejected before a record exists.
	KindValidation Kind = "validation"
	// KindExtractionEmpty: the document carries no extractable text layer.
	KindExtractionEmpty Kind = "extraction_empty"
	// KindExtractionFailed: the parser rejected the document.
	KindExtractionFailed Kind = "extraction_failed"
	// KindConfiguration: a required provider credential is missing.
	KindConfiguration Kind = "configuration"
	// KindTransport: network or timeout error talking to the provider.
	KindTransport Kind = "transport"
	// KindProvider: non-2xx response from the provider.
	KindProvider Kind = "provider"
	// KindProtocol: 2xx response missing the expected fields.
	KindProtocol Kind = "protocol"
	// KindPersistence: the record store is unavailable.
	KindPersistence Kind = "persistence"
	// KindDelivery: an outbound notification could not be sent.
	KindDelivery Kind = "delivery"
)

// Summary formats the error detail persisted on a failed record. The kind
// stays machine-readable while the detail is what the user ultimately sees.
func Summary(kind Kind, detail string) string {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return string(kind)
	}
	return string(kind) + ": " + detail
}
